// Package pool
// Author: momentics <momentics@gmail.com>
//
// Preallocated slot storage. FreeList hands out stable integer ids and
// delays their reuse; ChainQueue keeps a fixed payload pool and a FIFO of
// pending chains built from it.
package pool
