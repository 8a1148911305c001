// File: command/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package command implements a single-slot request channel.
//
// Request lends a command and waits for Logic.Process to finish with it.
// AsyncRequest transfers the command and waits only until the consumer has
// accepted it. New signals through a pollable descriptor for dispatcher
// integration; NewCond uses a request condition and an acknowledgement
// condition for consumers that never poll.
package command
