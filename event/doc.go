// File: event/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package event implements a pollable counting semaphore processor.
package event
