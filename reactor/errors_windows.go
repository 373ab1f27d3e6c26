//go:build windows
// +build windows

// File: reactor/errors_windows.go
// Author: momentics <momentics@gmail.com>
//
// Maps Winsock/Kernel error codes to the typed taxonomy of spec.md §7.
// The recv mappings for WSAETIMEDOUT/WSAECONNABORTED -> ConnectionRefused
// and WSAESHUTDOWN -> SocketNotConnected are preserved as definitions, not
// reinterpreted (spec.md §9, open question).

package reactor

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isWouldBlock(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK) || errors.Is(err, windows.ERROR_IO_PENDING)
}

func mapAcceptError(err error) error {
	switch {
	case errors.Is(err, windows.WSAECONNABORTED):
		return ErrConnectionAborted
	case errors.Is(err, windows.WSAENOTSOCK):
		return ErrFileDescriptorNotASocket
	case errors.Is(err, windows.WSAEOPNOTSUPP):
		return ErrOperationNotSupported
	case errors.Is(err, windows.WSAENOBUFS), errors.Is(err, windows.WSAEMFILE):
		return ErrSystemResources
	default:
		return &ErrUnexpected{Op: OpAccept, Err: err}
	}
}

func mapConnectError(err error) error {
	switch {
	case errors.Is(err, windows.WSAEADDRNOTAVAIL):
		return ErrAddressNotAvailable
	case errors.Is(err, windows.WSAEAFNOSUPPORT):
		return ErrAddressFamilyNotSupported
	case errors.Is(err, windows.WSAECONNREFUSED):
		return ErrConnectionRefused
	case errors.Is(err, windows.WSAENETUNREACH), errors.Is(err, windows.WSAENETDOWN):
		return ErrNetworkUnreachable
	case errors.Is(err, windows.WSAENOBUFS):
		return ErrSystemResources
	case errors.Is(err, windows.WSAETIMEDOUT):
		return ErrConnectionTimedOut
	case errors.Is(err, windows.WSAENOTSOCK):
		return ErrFileDescriptorNotASocket
	default:
		return &ErrUnexpected{Op: OpConnect, Err: err}
	}
}

func mapSendError(err error) error {
	switch {
	case errors.Is(err, windows.WSAECONNRESET):
		return ErrConnectionResetByPeer
	case errors.Is(err, windows.WSAEMSGSIZE):
		return ErrMessageTooBig
	case errors.Is(err, windows.WSAENETDOWN), errors.Is(err, windows.WSAENETRESET):
		return ErrNetworkSubsystemFailed
	case errors.Is(err, windows.WSAENOBUFS):
		return ErrSystemResources
	case errors.Is(err, windows.WSAENOTSOCK):
		return ErrFileDescriptorNotASocket
	case errors.Is(err, windows.WSAESHUTDOWN):
		return ErrBrokenPipe
	default:
		return &ErrUnexpected{Op: OpSend, Err: err}
	}
}

func mapRecvError(err error) error {
	switch {
	case errors.Is(err, windows.WSAETIMEDOUT), errors.Is(err, windows.WSAECONNABORTED):
		return ErrConnectionRefused
	case errors.Is(err, windows.WSAECONNRESET):
		return ErrConnectionResetByPeer
	case errors.Is(err, windows.WSAEMSGSIZE):
		return ErrMessageTooBig
	case errors.Is(err, windows.WSAENETDOWN), errors.Is(err, windows.WSAENETRESET):
		return ErrNetworkSubsystemFailed
	case errors.Is(err, windows.WSAESHUTDOWN):
		return ErrSocketNotConnected
	case errors.Is(err, windows.WSAENOBUFS):
		return ErrSystemResources
	default:
		return &ErrUnexpected{Op: OpRecv, Err: err}
	}
}

func mapReadError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return ErrNotOpenForReading
	case errors.Is(err, windows.ERROR_HANDLE_EOF):
		return nil // callers treat a short read as the terminal condition, not an error
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return ErrAlignment
	case errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY):
		return ErrSystemResources
	case errors.Is(err, windows.ERROR_IO_DEVICE):
		return ErrInputOutput
	case errors.Is(err, windows.ERROR_DIRECTORY):
		return ErrIsDir
	case errors.Is(err, windows.ERROR_SEEK_ON_DEVICE), errors.Is(err, windows.ERROR_NEGATIVE_SEEK):
		return ErrUnseekable
	default:
		return &ErrUnexpected{Op: OpRead, Err: err}
	}
}

// mapWriteError maps positional-write failures (spec.md §7: "positional-
// write errors from the host OS"). Distinct from mapReadError so a failed
// write is never tagged OpRead inside an ErrUnexpected, and so write-only
// conditions (disk full, quota) surface their own kind instead of read's.
func mapWriteError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_DISK_FULL):
		return ErrNoSpaceLeft
	case errors.Is(err, windows.ERROR_DISK_QUOTA_EXCEEDED):
		return ErrDiskQuota
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return ErrAlignment
	case errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY):
		return ErrSystemResources
	case errors.Is(err, windows.ERROR_IO_DEVICE):
		return ErrInputOutput
	case errors.Is(err, windows.ERROR_SEEK_ON_DEVICE), errors.Is(err, windows.ERROR_NEGATIVE_SEEK):
		return ErrUnseekable
	default:
		return &ErrUnexpected{Op: OpWrite, Err: err}
	}
}

func mapCloseError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_INVALID_HANDLE):
		return ErrFileDescriptorInvalid
	case errors.Is(err, windows.ERROR_DISK_FULL):
		return ErrNoSpaceLeft
	case errors.Is(err, windows.ERROR_DISK_QUOTA_EXCEEDED):
		return ErrDiskQuota
	default:
		return &ErrUnexpected{Op: OpClose, Err: err}
	}
}
