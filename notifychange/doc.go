// File: notifychange/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package notifychange implements a coalescing "latest distinct value"
// mailbox. Posting a value equal to the current one is a no-op; posting A
// then B before the consumer runs delivers only B.
package notifychange
