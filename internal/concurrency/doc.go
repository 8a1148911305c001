// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wake-up primitives shared by the processors: a counting eventfd whose
// descriptor can be registered with a dispatcher, and a condition variable
// with a bounded wait.
package concurrency
