// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer abstraction used by the
// dispatcher, with an epoll backend on Linux.
package reactor
