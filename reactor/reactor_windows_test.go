//go:build windows
// +build windows

// File: reactor/reactor_windows_test.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/iocp-reactor/pool"
	"golang.org/x/sys/windows"
)

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := Init(64, 0)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// TestTimerOrdering verifies that timers submitted out of deadline order
// fire in deadline order (earliest-first), not submission order.
func TestTimerOrdering(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	var fired []string
	c1, c2, c3 := &Completion{}, &Completion{}, &Completion{}

	if err := r.SubmitTimeout(c3, 30_000_000, func(any) { fired = append(fired, "c3") }, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitTimeout(c1, 5_000_000, func(any) { fired = append(fired, "c1") }, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitTimeout(c2, 15_000_000, func(any) { fired = append(fired, "c2") }, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(fired) < 3 && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}

	if len(fired) != 3 {
		t.Fatalf("expected 3 timers to fire, got %v", fired)
	}
	if fired[0] != "c1" || fired[1] != "c2" || fired[2] != "c3" {
		t.Fatalf("timers fired out of deadline order: %v", fired)
	}
}

// TestZeroTimeoutYieldsOnNextTick verifies a zero-duration timeout never
// fires synchronously inside Submit, only on the next Tick/flush.
func TestZeroTimeoutYieldsOnNextTick(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	fired := false
	c := &Completion{}
	if err := r.SubmitTimeout(c, 0, func(any) { fired = true }, nil); err != nil {
		t.Fatal(err)
	}
	if fired {
		t.Fatal("a zero-duration timeout must not fire before the next flush")
	}
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	if !fired {
		t.Fatal("a zero-duration timeout must fire on the very next Tick")
	}
}

// TestRunForNSHonorsLowerBound verifies RunForNS blocks for at least ns.
func TestRunForNSHonorsLowerBound(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	const want = 20 * time.Millisecond
	start := time.Now()
	if err := r.RunForNS(uint64(want.Nanoseconds())); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < want {
		t.Fatalf("RunForNS returned after %v, want at least %v", elapsed, want)
	}
}

// TestTCPAcceptConnectEcho exercises the full accept/connect/send/recv/close
// round trip over a loopback TCP connection driven entirely by the reactor.
func TestTCPAcceptConnectEcho(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	listen, err := r.OpenSocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("OpenSocket(listen): %v", err)
	}
	addr := &windows.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Bind(windows.Handle(listen), addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	bound, err := windows.Getsockname(windows.Handle(listen))
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	port := bound.(*windows.SockaddrInet4).Port
	if err := windows.Listen(windows.Handle(listen), 1); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	client, err := r.OpenSocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("OpenSocket(client): %v", err)
	}

	var serverConn, acceptErr, connectErr, sendErr, recvErr error
	var acceptDone, connectDone, sendDone, recvDone bool
	var serverSock Socket
	var n int

	scratch := pool.Default().GetPool(-1)
	sendBuf := scratch.Get(4)
	defer sendBuf.Release()
	recvBufHandle := scratch.Get(64)
	defer recvBufHandle.Release()
	recvBuf := recvBufHandle.Bytes()

	acceptC := &Completion{}
	if err := r.SubmitAccept(acceptC, listen, func(ctx any, client Socket, err error) {
		serverSock = client
		acceptErr = err
		acceptDone = true
	}, nil); err != nil {
		t.Fatal(err)
	}

	connectC := &Completion{}
	addrStr := "127.0.0.1:" + itoa(int(port))
	if err := r.SubmitConnect(connectC, client, addrStr, func(ctx any, err error) {
		connectErr = err
		connectDone = true
	}, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for (!acceptDone || !connectDone) && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if !acceptDone || acceptErr != nil {
		t.Fatalf("accept did not complete cleanly: done=%v err=%v", acceptDone, acceptErr)
	}
	if !connectDone || connectErr != nil {
		t.Fatalf("connect did not complete cleanly: done=%v err=%v", connectDone, connectErr)
	}
	_ = serverConn

	sendC := &Completion{}
	payload := sendBuf.Bytes()
	copy(payload, "ping")
	if err := r.SubmitSend(sendC, client, payload, func(ctx any, nn int, err error) {
		sendErr = err
		sendDone = true
	}, nil); err != nil {
		t.Fatal(err)
	}

	recvC := &Completion{}
	if err := r.SubmitRecv(recvC, serverSock, recvBuf, func(ctx any, nn int, err error) {
		n = nn
		recvErr = err
		recvDone = true
	}, nil); err != nil {
		t.Fatal(err)
	}

	deadline = time.Now().Add(3 * time.Second)
	for (!sendDone || !recvDone) && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if !sendDone || sendErr != nil {
		t.Fatalf("send did not complete cleanly: done=%v err=%v", sendDone, sendErr)
	}
	if !recvDone || recvErr != nil {
		t.Fatalf("recv did not complete cleanly: done=%v err=%v", recvDone, recvErr)
	}
	if string(recvBuf[:n]) != "ping" {
		t.Fatalf("expected to echo back %q, got %q", "ping", recvBuf[:n])
	}

	closeDone := 0
	closeCb := func(ctx any, err error) {
		if err != nil {
			t.Errorf("close: %v", err)
		}
		closeDone++
	}
	c1, c2, c3 := &Completion{}, &Completion{}, &Completion{}
	_ = r.SubmitClose(c1, FD(client), closeCb, nil)
	_ = r.SubmitClose(c2, FD(serverSock), closeCb, nil)
	_ = r.SubmitClose(c3, FD(listen), closeCb, nil)

	deadline = time.Now().Add(3 * time.Second)
	for closeDone < 3 && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if closeDone != 3 {
		t.Fatalf("expected 3 closes to complete, got %d", closeDone)
	}
}

// TestFileDurability exercises spec.md §8 S5: a file opened with OpenFile
// at a sector-aligned size, written through the reactor, closed, and
// reopened must read back exactly what was written.
func TestFileDurability(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	path := filepath.Join(t.TempDir(), "durable.dat")
	const size = 4 * sectorSize

	fd, err := r.OpenFile(InvalidFD, path, size, OpenCreate, true)
	if err != nil {
		t.Fatalf("OpenFile(create): %v", err)
	}

	sector := make([]byte, sectorSize)
	for i := range sector {
		sector[i] = byte(i)
	}

	writeDone, closeDone := false, false
	var writeErr, closeErr error
	var n int

	writeC := &Completion{}
	if err := r.SubmitWrite(writeC, fd, sector, 0, func(ctx any, nn int, err error) {
		n, writeErr, writeDone = nn, err, true
	}, nil); err != nil {
		t.Fatal(err)
	}
	closeC := &Completion{}
	if err := r.SubmitClose(closeC, fd, func(ctx any, err error) {
		closeErr, closeDone = err, true
	}, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for (!writeDone || !closeDone) && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if !writeDone || writeErr != nil || n != sectorSize {
		t.Fatalf("write did not complete cleanly: done=%v err=%v n=%d", writeDone, writeErr, n)
	}
	if !closeDone || closeErr != nil {
		t.Fatalf("close did not complete cleanly: done=%v err=%v", closeDone, closeErr)
	}

	fd2, err := r.OpenFile(InvalidFD, path, size, OpenExisting, true)
	if err != nil {
		t.Fatalf("OpenFile(open): %v", err)
	}

	readBuf := make([]byte, sectorSize)
	readDone := false
	var readErr error
	var rn int
	readC := &Completion{}
	if err := r.SubmitRead(readC, fd2, readBuf, 0, func(ctx any, nn int, err error) {
		rn, readErr, readDone = nn, err, true
	}, nil); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(3 * time.Second)
	for !readDone && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if !readDone || readErr != nil || rn != sectorSize {
		t.Fatalf("read did not complete cleanly: done=%v err=%v n=%d", readDone, readErr, rn)
	}
	for i := range sector {
		if readBuf[i] != sector[i] {
			t.Fatalf("read back mismatch at offset %d: got %d want %d", i, readBuf[i], sector[i])
		}
	}

	closeDone2 := false
	closeC2 := &Completion{}
	if err := r.SubmitClose(closeC2, fd2, func(ctx any, err error) { closeDone2 = true }, nil); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(3 * time.Second)
	for !closeDone2 && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
}

// TestAcceptFailureClosesInternalSocket exercises spec.md §8 S6: if the
// listener is closed between SubmitAccept and the IOCP harvesting the
// resulting failure, the internally created client socket must be closed
// and the callback must receive a mapped error, never WouldBlock.
func TestAcceptFailureClosesInternalSocket(t *testing.T) {
	r := newTestReactor(t)
	defer r.Deinit()

	listen, err := r.OpenSocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("OpenSocket(listen): %v", err)
	}
	addr := &windows.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Bind(windows.Handle(listen), addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := windows.Listen(windows.Handle(listen), 1); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	acceptDone := false
	var acceptErr error
	acceptC := &Completion{}
	if err := r.SubmitAccept(acceptC, listen, func(ctx any, client Socket, err error) {
		acceptErr, acceptDone = err, true
	}, nil); err != nil {
		t.Fatal(err)
	}

	// Drive the first (starting) attempt, then close the listener so the
	// pending AcceptEx is torn down before it can ever succeed.
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	windows.Closesocket(windows.Handle(listen))

	deadline := time.Now().Add(3 * time.Second)
	for !acceptDone && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if !acceptDone {
		t.Fatal("accept callback never fired after listener was closed")
	}
	if acceptErr == nil {
		t.Fatal("expected a mapped error after listener closure, got nil")
	}
	if acceptErr == errWouldBlock {
		t.Fatal("WouldBlock must never reach a user callback")
	}
	if op := acceptC.payload.(*acceptOp); op.client != windows.InvalidHandle {
		t.Fatal("internally created client socket was not closed after the failed accept")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
