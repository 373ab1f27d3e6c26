//go:build windows
// +build windows

// File: reactor/ops_file_windows.go
// Author: momentics <momentics@gmail.com>
//
// Positional file I/O and close (spec.md §4.3, §4.4). read/write/close are
// synchronous on this backend: file handles opened by OpenFile are not
// associated with the IOCP (spec.md §4.4 scopes overlapped delivery to
// sockets), so ReadFile/WriteFile/CloseHandle run to completion inline and
// the operation never goes kernel-pending.

package reactor

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

const sectorSize = 512

type readOp struct {
	fd     windows.Handle
	buf    []byte
	offset int64
	cb     ReadCallback
	ctx    any
}

func (op *readOp) overlapped() *windows.Overlapped { return nil }

func (op *readOp) step(r *Reactor) (pending bool) {
	ov := windows.Overlapped{
		Offset:     uint32(op.offset),
		OffsetHigh: uint32(op.offset >> 32),
	}
	var n uint32
	err := windows.ReadFile(op.fd, op.buf, &n, &ov)
	if err != nil {
		if errors.Is(err, windows.ERROR_HANDLE_EOF) {
			op.cb(op.ctx, int(n), nil)
			return false
		}
		op.cb(op.ctx, 0, mapReadError(err))
		return false
	}
	op.cb(op.ctx, int(n), nil)
	return false
}

// SubmitRead reads len(buf) bytes from fd starting at offset. A short read
// (n < len(buf)) with a nil error is not itself an error condition; the
// caller decides whether it signals end-of-file.
func (r *Reactor) SubmitRead(c *Completion, fd FD, buf []byte, offset int64, cb ReadCallback, ctx any) error {
	*c = Completion{
		op:  OpRead,
		ctx: ctx,
		payload: &readOp{
			fd:     windows.Handle(fd),
			buf:    buf,
			offset: offset,
			cb:     cb,
			ctx:    ctx,
		},
	}
	r.stage(c)
	return nil
}

type writeOp struct {
	fd     windows.Handle
	buf    []byte
	offset int64
	cb     WriteCallback
	ctx    any
}

func (op *writeOp) overlapped() *windows.Overlapped { return nil }

func (op *writeOp) step(r *Reactor) (pending bool) {
	ov := windows.Overlapped{
		Offset:     uint32(op.offset),
		OffsetHigh: uint32(op.offset >> 32),
	}
	var n uint32
	err := windows.WriteFile(op.fd, op.buf, &n, &ov)
	if err != nil {
		op.cb(op.ctx, 0, mapWriteError(err))
		return false
	}
	op.cb(op.ctx, int(n), nil)
	return false
}

// SubmitWrite writes buf to fd at offset.
func (r *Reactor) SubmitWrite(c *Completion, fd FD, buf []byte, offset int64, cb WriteCallback, ctx any) error {
	*c = Completion{
		op:  OpWrite,
		ctx: ctx,
		payload: &writeOp{
			fd:     windows.Handle(fd),
			buf:    buf,
			offset: offset,
			cb:     cb,
			ctx:    ctx,
		},
	}
	r.stage(c)
	return nil
}

type closeOp struct {
	handle windows.Handle
	isSock bool
	cb     CloseCallback
	ctx    any
}

func (op *closeOp) overlapped() *windows.Overlapped { return nil }

func (op *closeOp) step(r *Reactor) (pending bool) {
	var err error
	if op.isSock {
		err = windows.Closesocket(windows.Handle(op.handle))
	} else {
		err = windows.CloseHandle(op.handle)
	}
	if err != nil {
		op.cb(op.ctx, mapCloseError(err))
		return false
	}
	op.cb(op.ctx, nil)
	return false
}

// isSocketHandle probes whether h refers to a socket by attempting to read
// SO_ERROR; ENOTSOCK routes close through CloseHandle instead of
// Closesocket (spec.md §4.4: close is polymorphic over the handle kind).
func isSocketHandle(h windows.Handle) bool {
	var errVal int32
	l := int32(unsafe.Sizeof(errVal))
	err := windows.Getsockopt(h, windows.SOL_SOCKET, windows.SO_ERROR,
		(*byte)(unsafe.Pointer(&errVal)), &l)
	return !errors.Is(err, windows.WSAENOTSOCK)
}

// SubmitClose closes h, dispatching to Closesocket or CloseHandle depending
// on the handle's actual kind.
func (r *Reactor) SubmitClose(c *Completion, h FD, cb CloseCallback, ctx any) error {
	handle := windows.Handle(h)
	*c = Completion{
		op:  OpClose,
		ctx: ctx,
		payload: &closeOp{
			handle: handle,
			isSock: isSocketHandle(handle),
			cb:     cb,
			ctx:    ctx,
		},
	}
	r.stage(c)
	return nil
}

// preallocate sizes h to size bytes (spec.md §4.4): seek to size and call
// SetEndOfFile; on failure, fall back to writing a final zero sector at
// size-sectorSize, retrying on short writes.
func preallocate(h windows.Handle, size int64) error {
	if _, err := windows.SetFilePointer(h, int32(size), int32Ptr(int32(size>>32)), windows.FILE_BEGIN); err == nil {
		if err := windows.SetEndOfFile(h); err == nil {
			return nil
		}
	}
	if size < sectorSize {
		return nil
	}
	sector := make([]byte, sectorSize)
	offset := size - sectorSize
	for written := 0; written < sectorSize; {
		n, err := pwrite(h, sector[written:], offset+int64(written))
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("reactor: preallocate: zero-length write")
		}
		written += n
	}
	return nil
}

func int32Ptr(v int32) *int32 { return &v }

func pwrite(h windows.Handle, buf []byte, offset int64) (int, error) {
	ov := windows.Overlapped{
		Offset:     uint32(offset),
		OffsetHigh: uint32(offset >> 32),
	}
	var n uint32
	err := windows.WriteFile(h, buf, &n, &ov)
	return int(n), err
}

// OpenFile opens or creates the file at path (dir is not used by this
// backend: CreateFile takes path as given, since Windows paths are
// absolute/volume-relative, not fd-relative),
// sized to size bytes, taking an exclusive advisory lock over the whole
// file for the lifetime of the handle (spec.md §4.4 durability model).
// directIO requests FILE_FLAG_NO_BUFFERING | FILE_FLAG_WRITE_THROUGH.
func (r *Reactor) OpenFile(dir FD, path string, size int64, method OpenMethod, directIO bool) (FD, error) {
	if size < 0 || size%sectorSize != 0 {
		return InvalidFD, ErrAlignment
	}

	var disposition uint32
	switch method {
	case OpenCreate:
		disposition = windows.CREATE_NEW
	case OpenCreateOrOpen:
		disposition = windows.OPEN_ALWAYS
	case OpenExisting:
		disposition = windows.OPEN_EXISTING
	default:
		return InvalidFD, errors.New("reactor: invalid OpenMethod")
	}

	var flags uint32 = windows.FILE_ATTRIBUTE_NORMAL
	if directIO {
		const fileFlagNoBuffering = 0x20000000
		const fileFlagWriteThrough = 0x80000000
		flags |= fileFlagNoBuffering | fileFlagWriteThrough
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return InvalidFD, err
	}
	h, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing: spec.md §4.4 wants exclusive ownership of the file
		nil,
		disposition,
		flags,
		0,
	)
	if err != nil {
		return InvalidFD, mapReadError(err)
	}

	// CREATE_NEW always yields a fresh file; OPEN_ALWAYS sets
	// ERROR_ALREADY_EXISTS (readable via GetLastError immediately after a
	// successful call) when it opened rather than created. OPEN_EXISTING
	// never creates. Preallocation below must only run for a fresh file
	// (spec.md §4.4: "on fresh create, preallocates...").
	fresh := method == OpenCreate
	if method == OpenCreateOrOpen {
		fresh = !errors.Is(windows.GetLastError(), windows.ERROR_ALREADY_EXISTS)
	}

	if err := windows.LockFileEx(
		h, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, ^uint32(0), ^uint32(0), &windows.Overlapped{},
	); err != nil {
		windows.CloseHandle(h)
		// Contention on a file this backend expects to own exclusively is
		// treated as fatal misuse, not a recoverable condition (spec.md §5).
		panic("reactor: OpenFile: file is already locked by another owner")
	}

	if fresh {
		if err := preallocate(h, size); err != nil {
			windows.CloseHandle(h)
			return InvalidFD, mapReadError(err)
		}
	}

	var actual int64
	if err := windows.GetFileSizeEx(h, &actual); err != nil {
		windows.CloseHandle(h)
		return InvalidFD, mapReadError(err)
	}
	if actual < size {
		windows.CloseHandle(h)
		panic("reactor: OpenFile: file shorter than requested size, likely corrupt")
	}

	if err := windows.FlushFileBuffers(h); err != nil {
		windows.CloseHandle(h)
		return InvalidFD, mapReadError(err)
	}

	return FD(h), nil
}

// OpenDir opens path as a directory handle. On this backend it exists only
// to satisfy the platform-neutral surface; dir handles are not otherwise
// interpreted since Windows paths carry no fd-relative component.
func (r *Reactor) OpenDir(path string) (FD, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return InvalidFD, err
	}
	h, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return InvalidFD, mapReadError(err)
	}
	return FD(h), nil
}
