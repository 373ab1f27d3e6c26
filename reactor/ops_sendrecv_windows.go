//go:build windows
// +build windows

// File: reactor/ops_sendrecv_windows.go
// Author: momentics <momentics@gmail.com>
//
// send/recv state machines (spec.md §4.3) over WSASend/WSARecv. Both are
// single-buffer operations; spec.md §6 caps buffer length at a uint32, so
// overlong slices are truncated rather than rejected (a caller pushing
// gigabyte buffers through one completion is already off the sane path).

package reactor

import (
	"golang.org/x/sys/windows"
)

// bufferLimit clamps n to what WSABuf.Len (a uint32) can express.
func bufferLimit(n int) uint32 {
	const maxUint32 = ^uint32(0)
	if uint64(n) > uint64(maxUint32) {
		return maxUint32
	}
	return uint32(n)
}

func bufPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

type sendOp struct {
	sock    windows.Handle
	buf     []byte
	ov      windows.Overlapped
	pending bool
	cb      SendCallback
	ctx     any
}

func (s *sendOp) overlapped() *windows.Overlapped { return &s.ov }

func (s *sendOp) step(r *Reactor) (pending bool) {
	if !s.pending {
		return s.start(r)
	}
	return s.poll(r)
}

func (s *sendOp) start(r *Reactor) bool {
	s.ov = windows.Overlapped{}
	wsabuf := windows.WSABuf{Len: bufferLimit(len(s.buf)), Buf: bufPtr(s.buf)}
	var sent uint32
	err := windows.WSASend(s.sock, &wsabuf, 1, &sent, 0, &s.ov, nil)
	if err == nil {
		// FILE_SKIP_COMPLETION_PORT_ON_SUCCESS means no IOCP packet will
		// arrive for this inline completion; report now, don't go pending.
		s.cb(s.ctx, int(sent), nil)
		return false
	}
	if isWouldBlock(err) {
		s.pending = true
		return true
	}
	s.cb(s.ctx, 0, mapSendError(err))
	return false
}

func (s *sendOp) poll(r *Reactor) bool {
	transferred, err := pollBytesTransferred(s.sock, &s.ov)
	if err != nil {
		if isWouldBlock(err) {
			return true
		}
		s.cb(s.ctx, 0, mapSendError(err))
		return false
	}
	s.cb(s.ctx, int(transferred), nil)
	return false
}

// pollBytesTransferred retrieves the result of a kernel-pending overlapped
// op without blocking (the IOCP harvest already delivered the packet).
func pollBytesTransferred(sock windows.Handle, ov *windows.Overlapped) (uint32, error) {
	var transferred uint32
	err := windows.GetOverlappedResult(sock, ov, &transferred, false)
	return transferred, err
}

// SubmitSend writes buf to sock. cb fires exactly once with bytes actually
// transferred (which may be less than len(buf)) or a mapped SendError.
func (r *Reactor) SubmitSend(c *Completion, sock Socket, buf []byte, cb SendCallback, ctx any) error {
	*c = Completion{
		op:  OpSend,
		ctx: ctx,
		payload: &sendOp{
			sock: windows.Handle(sock),
			buf:  buf,
			cb:   cb,
			ctx:  ctx,
		},
	}
	r.stage(c)
	return nil
}

type recvOp struct {
	sock    windows.Handle
	buf     []byte
	ov      windows.Overlapped
	pending bool
	cb      RecvCallback
	ctx     any
}

func (rv *recvOp) overlapped() *windows.Overlapped { return &rv.ov }

func (rv *recvOp) step(r *Reactor) (pending bool) {
	if !rv.pending {
		return rv.start(r)
	}
	return rv.poll(r)
}

func (rv *recvOp) start(r *Reactor) bool {
	rv.ov = windows.Overlapped{}
	wsabuf := windows.WSABuf{Len: bufferLimit(len(rv.buf)), Buf: bufPtr(rv.buf)}
	var received, flags uint32
	err := windows.WSARecv(rv.sock, &wsabuf, 1, &received, &flags, &rv.ov, nil)
	if err == nil {
		rv.cb(rv.ctx, int(received), nil)
		return false
	}
	if isWouldBlock(err) {
		rv.pending = true
		return true
	}
	rv.cb(rv.ctx, 0, mapRecvError(err))
	return false
}

func (rv *recvOp) poll(r *Reactor) bool {
	transferred, err := pollBytesTransferred(rv.sock, &rv.ov)
	if err != nil {
		if isWouldBlock(err) {
			return true
		}
		rv.cb(rv.ctx, 0, mapRecvError(err))
		return false
	}
	rv.cb(rv.ctx, int(transferred), nil)
	return false
}

// SubmitRecv reads into buf from sock. A zero-byte result with a nil error
// signals an orderly peer shutdown, same as a plain socket read.
func (r *Reactor) SubmitRecv(c *Completion, sock Socket, buf []byte, cb RecvCallback, ctx any) error {
	*c = Completion{
		op:  OpRecv,
		ctx: ctx,
		payload: &recvOp{
			sock: windows.Handle(sock),
			buf:  buf,
			cb:   cb,
			ctx:  ctx,
		},
	}
	r.stage(c)
	return nil
}
