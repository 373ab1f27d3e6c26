//go:build windows
// +build windows

// File: reactor/socket_windows.go
// Author: momentics <momentics@gmail.com>
//
// Overlapped-capable socket creation and IOCP association (spec.md §4.4).

package reactor

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const (
	wsaFlagOverlapped     = 0x01
	wsaFlagNoHandleInherit = 0x80
)

// OpenSocket creates a socket with WSA_FLAG_OVERLAPPED |
// WSA_FLAG_NO_HANDLE_INHERIT, associates it with the reactor's IOCP, and
// disables redundant completion-port queuing and event signaling for
// inline-completing operations (spec.md §4.4).
func (r *Reactor) OpenSocket(family, sotype, proto int) (Socket, error) {
	s, err := windows.WSASocket(
		int32(family), int32(sotype), int32(proto), nil, 0,
		wsaFlagOverlapped|wsaFlagNoHandleInherit,
	)
	if err != nil {
		return InvalidSocket, fmt.Errorf("reactor: WSASocket: %w", err)
	}
	if err := r.associate(windows.Handle(s)); err != nil {
		windows.Closesocket(s)
		return InvalidSocket, err
	}
	return Socket(s), nil
}

// newOverlappedSocket is the internal variant used by accept to create the
// socket that will receive the connection; on any failure other than the
// caller already knowing it's "would block", it is the caller's job to
// close it (spec.md §5, resource ownership).
func (r *Reactor) newOverlappedSocket() (windows.Handle, error) {
	s, err := r.OpenSocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	return windows.Handle(s), err
}

// associate registers h with the reactor's IOCP and sets the two
// FILE_SKIP_* modes: a success-completing overlapped op on h then neither
// queues a redundant completion packet nor signals h's event, so the
// wrapper must report bytes transferred immediately without incrementing
// io_pending in that case (spec.md §4.4).
func (r *Reactor) associate(h windows.Handle) error {
	if _, err := windows.CreateIoCompletionPort(h, r.iocp, 0, 0); err != nil {
		return fmt.Errorf("reactor: CreateIoCompletionPort: %w", err)
	}
	const (
		fileSkipCompletionPortOnSuccess = 0x1
		fileSkipSetEventOnHandle        = 0x2
	)
	if err := windows.SetFileCompletionNotificationModes(
		h, fileSkipCompletionPortOnSuccess|fileSkipSetEventOnHandle,
	); err != nil {
		return fmt.Errorf("reactor: SetFileCompletionNotificationModes: %w", err)
	}
	return nil
}
