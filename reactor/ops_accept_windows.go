//go:build windows
// +build windows

// File: reactor/ops_accept_windows.go
// Author: momentics <momentics@gmail.com>
//
// accept state machine (spec.md §4.3): two states distinguished here by an
// explicit pending flag (spec.md §9 open question, resolved for symmetry
// with connect/send/recv).

package reactor

import (
	"unsafe"

	"github.com/momentics/iocp-reactor/pool"
	"golang.org/x/sys/windows"
)

var (
	modMswsock   = windows.NewLazySystemDLL("mswsock.dll")
	procAcceptEx = modMswsock.NewProc("AcceptEx")
)

// sockAddrStorageSize is sizeof(sockaddr_storage) on Windows.
const sockAddrStorageSize = 128

// acceptAddrBufLen is spec.md §6's fixed dual-address buffer length:
// 2*(sizeof(sockaddr_storage)+16).
const acceptAddrBufLen = 2 * (sockAddrStorageSize + 16)

const soUpdateAcceptContext = 0x700B

type acceptOp struct {
	listen  windows.Handle
	client  windows.Handle
	pending bool
	addrBuf pool.Buffer
	ov      windows.Overlapped
	cb      AcceptCallback
	ctx     any
}

func (a *acceptOp) overlapped() *windows.Overlapped { return &a.ov }

func (a *acceptOp) step(r *Reactor) (pending bool) {
	if !a.pending {
		return a.start(r)
	}
	return a.poll(r)
}

func (a *acceptOp) start(r *Reactor) bool {
	client, err := r.newOverlappedSocket()
	if err != nil {
		a.addrBuf.Release()
		a.cb(a.ctx, InvalidSocket, mapAcceptError(err))
		return false
	}
	a.client = client
	a.ov = windows.Overlapped{}

	addr := a.addrBuf.Bytes()
	var bytes uint32
	ret, _, errno := procAcceptEx.Call(
		uintptr(a.listen),
		uintptr(a.client),
		uintptr(unsafe.Pointer(&addr[0])),
		0,
		uintptr(sockAddrStorageSize+16),
		uintptr(sockAddrStorageSize+16),
		uintptr(unsafe.Pointer(&bytes)),
		uintptr(unsafe.Pointer(&a.ov)),
	)
	a.pending = true
	if ret != 0 {
		return a.finish(r)
	}
	if isWouldBlock(errno) {
		return true
	}
	windows.Closesocket(a.client)
	a.client = windows.InvalidHandle
	a.addrBuf.Release()
	a.cb(a.ctx, InvalidSocket, mapAcceptError(errno))
	return false
}

func (a *acceptOp) poll(r *Reactor) bool {
	var transferred, flags uint32
	err := windows.GetOverlappedResult(a.listen, &a.ov, &transferred, false)
	if err != nil {
		if isWouldBlock(err) {
			return true
		}
		windows.Closesocket(a.client)
		a.client = windows.InvalidHandle
		a.addrBuf.Release()
		a.cb(a.ctx, InvalidSocket, mapAcceptError(err))
		return false
	}
	_ = flags
	return a.finish(r)
}

func (a *acceptOp) finish(r *Reactor) bool {
	err := windows.Setsockopt(
		a.client, windows.SOL_SOCKET, soUpdateAcceptContext,
		(*byte)(unsafe.Pointer(&a.listen)), int32(unsafe.Sizeof(a.listen)),
	)
	a.addrBuf.Release()
	if err != nil {
		windows.Closesocket(a.client)
		a.client = windows.InvalidHandle
		a.cb(a.ctx, InvalidSocket, ErrSetSockOptFailed)
		return false
	}
	a.cb(a.ctx, Socket(a.client), nil)
	return false
}

// SubmitAccept issues an AcceptEx on listen. cb fires exactly once with
// either the new client socket or a mapped AcceptError. The dual-address
// scratch buffer AcceptEx writes into is drawn from the process-wide
// pool.BufferPoolManager (spec.md §6's fixed-length addr_buffer) rather
// than allocated fresh per accept.
func (r *Reactor) SubmitAccept(c *Completion, listen Socket, cb AcceptCallback, ctx any) error {
	*c = Completion{
		op:  OpAccept,
		ctx: ctx,
		payload: &acceptOp{
			listen:  windows.Handle(listen),
			client:  windows.InvalidHandle,
			addrBuf: pool.Default().GetPool(-1).Get(acceptAddrBufLen),
			cb:      cb,
			ctx:     ctx,
		},
	}
	r.stage(c)
	return nil
}
