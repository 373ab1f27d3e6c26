//go:build windows
// +build windows

// File: reactor/ops_connect_windows.go
// Author: momentics <momentics@gmail.com>
//
// connect state machine (spec.md §4.3): ConnectEx requires the socket to
// be bound first, and its function pointer is resolved dynamically via
// WSAIoctl rather than a named DLL export. Per spec.md §9 the reactor
// caches it once, lazily, rather than re-resolving on every connect.

package reactor

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const sioGetExtensionFunctionPointer = 0xC8000006

var wsaidConnectEx = windows.GUID{
	Data1: 0x25a207b9,
	Data2: 0xddf3,
	Data3: 0x4660,
	Data4: [8]byte{0x8e, 0xe9, 0x76, 0xe5, 0x8c, 0x74, 0x06, 0x3e},
}

const soUpdateConnectContext = 0x7010

// connectExPtr resolves and caches the ConnectEx extension function
// pointer for this reactor instance.
func (r *Reactor) connectExPtr() (uintptr, error) {
	r.connectExOnce.Do(func() {
		s, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
		if err != nil {
			r.connectExErr = err
			return
		}
		defer windows.Closesocket(s)
		var fn uintptr
		var bytes uint32
		err = windows.WSAIoctl(
			s, sioGetExtensionFunctionPointer,
			(*byte)(unsafe.Pointer(&wsaidConnectEx)), uint32(unsafe.Sizeof(wsaidConnectEx)),
			(*byte)(unsafe.Pointer(&fn)), uint32(unsafe.Sizeof(fn)),
			&bytes, nil, 0,
		)
		if err != nil {
			r.connectExErr = err
			return
		}
		r.connectExAddr = fn
	})
	return r.connectExAddr, r.connectExErr
}

type connectOp struct {
	sock    windows.Handle
	sa      windows.RawSockaddrInet4
	ov      windows.Overlapped
	pending bool
	cb      ConnectCallback
	ctx     any
}

func (c *connectOp) overlapped() *windows.Overlapped { return &c.ov }

func (c *connectOp) step(r *Reactor) (pending bool) {
	if !c.pending {
		return c.start(r)
	}
	return c.poll(r)
}

func (c *connectOp) start(r *Reactor) bool {
	// ConnectEx requires the socket to be bound first.
	if err := windows.Bind(c.sock, &windows.SockaddrInet4{}); err != nil {
		c.cb(c.ctx, mapConnectError(err))
		return false
	}
	fn, err := r.connectExPtr()
	if err != nil {
		c.cb(c.ctx, mapConnectError(err))
		return false
	}
	c.ov = windows.Overlapped{}
	c.pending = true
	var bytesSent uint32
	ret, _, errno := syscall.SyscallN(fn,
		uintptr(c.sock),
		uintptr(unsafe.Pointer(&c.sa)),
		uintptr(unsafe.Sizeof(c.sa)),
		0, 0,
		uintptr(unsafe.Pointer(&bytesSent)),
		uintptr(unsafe.Pointer(&c.ov)),
	)
	if ret != 0 {
		return c.finish(r)
	}
	if isWouldBlock(errno) {
		return true
	}
	c.cb(c.ctx, mapConnectError(errno))
	return false
}

func (c *connectOp) poll(r *Reactor) bool {
	var transferred uint32
	err := windows.GetOverlappedResult(c.sock, &c.ov, &transferred, false)
	if err != nil {
		if isWouldBlock(err) {
			return true
		}
		c.cb(c.ctx, mapConnectError(err))
		return false
	}
	return c.finish(r)
}

func (c *connectOp) finish(r *Reactor) bool {
	err := windows.Setsockopt(c.sock, windows.SOL_SOCKET, soUpdateConnectContext, nil, 0)
	if err != nil {
		c.cb(c.ctx, ErrSetSockOptFailed)
		return false
	}
	c.cb(c.ctx, nil)
	return false
}

// parseSockaddrInet4 resolves a "host:port" string into a RawSockaddrInet4.
// IPv6 is out of scope for this backend's ConnectEx plumbing (spec.md §9
// does not flag it; left as a follow-up surface, not implemented here).
func parseSockaddrInet4(addr string) (windows.RawSockaddrInet4, error) {
	var sa windows.RawSockaddrInet4
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return sa, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sa, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return sa, errors.New("reactor: invalid address " + addr)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return sa, ErrAddressFamilyNotSupported
	}
	sa.Family = windows.AF_INET
	sa.Port = uint16(port)<<8 | uint16(port)>>8 // host-to-network byte order
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// SubmitConnect connects sock to addr ("host:port"). sock must have been
// returned by OpenSocket and not yet bound. cb fires exactly once.
func (r *Reactor) SubmitConnect(c *Completion, sock Socket, addr string, cb ConnectCallback, ctx any) error {
	sa, err := parseSockaddrInet4(addr)
	if err != nil {
		return err
	}
	*c = Completion{
		op:  OpConnect,
		ctx: ctx,
		payload: &connectOp{
			sock: windows.Handle(sock),
			sa:   sa,
			cb:   cb,
			ctx:  ctx,
		},
	}
	r.stage(c)
	return nil
}
