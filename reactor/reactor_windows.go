//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// The Reactor: owns the IOCP handle, the timers/completed intrusive queues,
// and the io_pending counter (spec.md §3, §4.1). Reactor is a process-wide
// resource created by Init and destroyed by Deinit; it is not safe for
// concurrent use.

package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/iocp-reactor/reactor/reactorconfig"
	"golang.org/x/sys/windows"
)

// operation is the closed set of per-op state machines (spec.md §9: "a
// closed set of operation variants plus a dispatch function parameterized
// by the tag" — expressed here as a small interface rather than a manual
// switch, which is the Go-idiomatic rendering of the function-pointer
// table the design notes call out as an equivalent choice).
type operation interface {
	// step drives the operation forward one attempt. It returns true if
	// the op is now kernel-pending (the wrapper must not fire the user
	// callback and must register the overlapped back-pointer), false if
	// the op reached a terminal state and already invoked its callback.
	step(r *Reactor) (pending bool)

	// overlapped returns the embedded OVERLAPPED this op is waiting on,
	// or nil for ops that never go kernel-pending (read/write/close).
	overlapped() *windows.Overlapped
}

// Reactor multiplexes kernel IOCP completions with in-process timers.
type Reactor struct {
	iocp  windows.Handle
	start time.Time

	ioPending int
	timeouts  completionList
	completed completionList

	// pendingSubmissions is the staging FIFO every Submit* call pushes
	// onto; flush drains it before touching timeouts/completed, so a
	// completion submitted from inside a callback is never eligible
	// before the next flush (spec.md §5, invariant 6). github.com/eapache/queue
	// is declared but unused in the teacher repo this engine is grounded
	// on; this is its first real job.
	pendingSubmissions *queue.Queue

	// overlappedIndex recovers the owning Completion from a kernel-
	// returned *windows.Overlapped pointer (spec.md §9: "not via offset
	// arithmetic").
	overlappedIndex map[*windows.Overlapped]*Completion

	connectExOnce sync.Once
	connectExAddr uintptr
	connectExErr  error

	Config  *reactorconfig.Store
	Metrics *reactorconfig.Metrics
}

// Init initializes Winsock 2.2 and creates an IOCP handle. entries and
// flags are hints only on this backend (spec.md §6). On failure Winsock is
// cleaned up before returning.
func Init(entries, flags uint32) (*Reactor, error) {
	var wsaData windows.WSAData
	if err := windows.WSAStartup(uint32(0x0202), &wsaData); err != nil {
		return nil, fmt.Errorf("reactor: WSAStartup: %w", err)
	}
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		windows.WSACleanup()
		return nil, fmt.Errorf("reactor: CreateIoCompletionPort: %w", err)
	}
	r := &Reactor{
		iocp:               iocp,
		start:              time.Now(),
		pendingSubmissions: queue.New(),
		overlappedIndex:    make(map[*windows.Overlapped]*Completion),
		timeouts:           completionList{tag: queueTimers},
		completed:          completionList{tag: queueCompleted},
		Config: reactorconfig.NewStore(map[string]any{
			"entries":       entries,
			"flags":         flags,
			"harvest_batch": uint32(harvestBatchSize),
		}),
		Metrics: reactorconfig.NewMetrics(),
	}
	return r, nil
}

// Deinit closes the IOCP and tears down Winsock. Calling it while any
// Completion is still outstanding (io_pending > 0, or either queue
// non-empty) is a programmer error and panics (spec.md §4.1).
func (r *Reactor) Deinit() {
	if r.ioPending != 0 || !r.timeouts.empty() || !r.completed.empty() {
		panic("reactor: Deinit called with completions still outstanding")
	}
	windows.CloseHandle(r.iocp)
	r.iocp = windows.InvalidHandle
	windows.WSACleanup()
}

// nowNS returns nanoseconds since Init on the reactor's monotonic clock.
func (r *Reactor) nowNS() int64 { return time.Since(r.start).Nanoseconds() }

// harvestBatchSize bounds how many IOCP entries a single flush harvests
// (spec.md §6: "Up to 64 IOCP entries harvested per flush").
const harvestBatchSize = 64

// Tick performs one non-blocking flush cycle; it never blocks.
func (r *Reactor) Tick() error {
	return r.flush(false)
}

// RunForNS blocks in flush cycles until a synthetic internal timer fires,
// returning no earlier than ns nanoseconds after entry (spec.md §4.1).
func (r *Reactor) RunForNS(ns uint64) error {
	done := false
	c := &Completion{}
	if err := r.SubmitTimeout(c, ns, func(any) { done = true }, nil); err != nil {
		return err
	}
	for !done {
		if err := r.flush(true); err != nil {
			return err
		}
	}
	return nil
}

// stage pushes a freshly submitted Completion onto the staging queue; it
// becomes eligible no earlier than the next flush (spec.md §4.3 dispatch
// routing, §5 invariant 6).
func (r *Reactor) stage(c *Completion) {
	r.pendingSubmissions.Add(c)
}

// drainStaged moves every staged Completion into timeouts or completed,
// per spec.md §4.3: "timeout -> appended to timeouts; all other ops ->
// appended to completed so the next flush drives the initial attempt."
func (r *Reactor) drainStaged() {
	for r.pendingSubmissions.Length() > 0 {
		c := r.pendingSubmissions.Remove().(*Completion)
		if c.op == OpTimeout {
			r.routeTimeout(c)
		} else {
			r.completed.pushBack(c)
		}
	}
}

// routeTimeout implements the zero-duration fast path (spec.md §4.2):
// a zero-ns timeout skips the timers list entirely and goes straight to
// completed.
func (r *Reactor) routeTimeout(c *Completion) {
	if c.deadline <= r.nowNS() {
		r.completed.pushBack(c)
		return
	}
	r.timeouts.pushBack(c)
}

// flush runs one drain cycle. blocking selects whether step 3 may wait on
// the IOCP (spec.md §4.1).
func (r *Reactor) flush(blocking bool) error {
	r.drainStaged()

	minRemaining := noDeadline
	if r.completed.empty() {
		minRemaining = flushTimeouts(&r.timeouts, &r.completed, r.nowNS())
	}
	r.Metrics.Set("timers_outstanding", int64(r.timeouts.length))

	if r.ioPending > 0 && r.completed.empty() {
		var timeoutMs uint32
		if blocking {
			if minRemaining == noDeadline {
				panic("reactor: blocking flush with no timer to bound the wait")
			}
			timeoutMs = roundMillisHalfUp(minRemaining)
		} else {
			timeoutMs = 0
		}
		if err := r.harvest(timeoutMs); err != nil {
			return err
		}
	}

	// Snapshot-then-invoke: reset completed to empty before running any
	// callback, so callbacks submitting new ops never observe themselves
	// mid-drain (spec.md §4.1 step 4).
	snapshot := r.completed.drainAll()
	for c := snapshot; c != nil; {
		next := c.next
		c.next = nil
		r.runOp(c)
		r.Metrics.Add("completions_total", 1)
		c = next
	}
	return nil
}

// harvest drains up to harvestBatchSize entries from the IOCP in one call,
// translating each completed OVERLAPPED back to its owning Completion via
// overlappedIndex and appending it to completed.
func (r *Reactor) harvest(timeoutMs uint32) error {
	var entries [harvestBatchSize]windows.OverlappedEntry
	var n uint32
	err := windows.GetQueuedCompletionStatusEx(r.iocp, entries[:], &n, timeoutMs, false)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return nil
		}
		return fmt.Errorf("reactor: GetQueuedCompletionStatusEx: %w", err)
	}
	r.Metrics.Add("iocp_entries_harvested_total", int64(n))
	for i := uint32(0); i < n; i++ {
		ov := entries[i].Overlapped
		c, ok := r.overlappedIndex[ov]
		if !ok {
			continue // foreign/stale completion packet; nothing we own
		}
		delete(r.overlappedIndex, ov)
		r.ioPending--
		r.Metrics.Set("io_pending", int64(r.ioPending))
		r.completed.pushBack(c)
	}
	return nil
}

// runOp is the generic dispatch wrapper (spec.md §4.3): it drives the op
// forward once and either registers it as kernel-pending or lets it have
// already invoked the user callback.
func (r *Reactor) runOp(c *Completion) {
	op := c.payload.(operation)
	pending := op.step(r)
	if !pending {
		return
	}
	r.ioPending++
	r.Metrics.Set("io_pending", int64(r.ioPending))
	r.overlappedIndex[op.overlapped()] = c
}

// SubmitTimeout arranges for cb to fire no earlier than ns nanoseconds
// from now (spec.md §6).
func (r *Reactor) SubmitTimeout(c *Completion, ns uint64, cb TimeoutCallback, ctx any) error {
	*c = Completion{
		op:       OpTimeout,
		ctx:      ctx,
		deadline: r.nowNS() + int64(ns),
		payload:  &timeoutOp{cb: cb, ctx: ctx},
	}
	r.stage(c)
	return nil
}

type timeoutOp struct {
	cb  TimeoutCallback
	ctx any
}

func (t *timeoutOp) step(r *Reactor) bool {
	t.cb(t.ctx)
	return false
}

func (t *timeoutOp) overlapped() *windows.Overlapped { return nil }
