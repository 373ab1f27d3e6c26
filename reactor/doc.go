// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package reactor implements a single-threaded, completion-based async I/O
// engine for Windows: TCP accept/connect/send/recv, positional file
// read/write, descriptor close, and monotonic timers, all multiplexed over
// a single IOCP handle together with an in-process timer list.
//
// The engine is not safe for concurrent use from multiple goroutines; the
// only cross-thread interaction is the kernel posting completions to the
// IOCP, which GetQueuedCompletionStatusEx handles internally. Submit, Tick,
// and RunForNS must all be called from the same goroutine.
//
// Non-Windows builds compile (reactor_other.go) so the package remains
// importable from cross-platform code, but every entry point returns
// ErrNotSupported: POSIX/io_uring backends are a parallel, unspecified
// implementation, not a variant of this one.
package reactor
