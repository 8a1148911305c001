// File: timedevent/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package timedevent implements a counting semaphore with a bounded wait and
// a timeout callback. It is signalled through a condition variable on the
// monotonic clock and exposes no descriptor.
package timedevent
