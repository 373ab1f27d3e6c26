//go:build !windows
// +build !windows

// File: reactor/reactor_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub for non-Windows platforms. A POSIX/io_uring backend is an
// explicitly out-of-scope parallel implementation (spec.md §1); this file
// only keeps the package importable from cross-platform code by mirroring
// the exported surface with ErrNotSupported everywhere.
package reactor

// Reactor is a non-functional placeholder on this platform.
type Reactor struct{}

// Init always fails on non-Windows builds.
func Init(entries, flags uint32) (*Reactor, error) {
	return nil, ErrNotSupported
}

// Deinit is a no-op on this platform.
func (r *Reactor) Deinit() {}

// Tick always returns ErrNotSupported.
func (r *Reactor) Tick() error { return ErrNotSupported }

// RunForNS always returns ErrNotSupported.
func (r *Reactor) RunForNS(ns uint64) error { return ErrNotSupported }

func (r *Reactor) SubmitAccept(c *Completion, listen Socket, cb AcceptCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitConnect(c *Completion, sock Socket, addr string, cb ConnectCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitSend(c *Completion, sock Socket, buf []byte, cb SendCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitRecv(c *Completion, sock Socket, buf []byte, cb RecvCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitRead(c *Completion, fd FD, buf []byte, off int64, cb ReadCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitWrite(c *Completion, fd FD, buf []byte, off int64, cb WriteCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitClose(c *Completion, fd FD, cb CloseCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) SubmitTimeout(c *Completion, ns uint64, cb TimeoutCallback, ctx any) error {
	return ErrNotSupported
}

func (r *Reactor) OpenSocket(family, sotype, proto int) (Socket, error) {
	return InvalidSocket, ErrNotSupported
}

func (r *Reactor) OpenFile(dir FD, path string, size int64, method OpenMethod, directIO bool) (FD, error) {
	return InvalidFD, ErrNotSupported
}

func (r *Reactor) OpenDir(path string) (FD, error) {
	return InvalidFD, ErrNotSupported
}
