// File: reactor/timerwheel.go
// Author: momentics <momentics@gmail.com>
//
// Monotonic-clock-indexed timer list with an O(n) scan per flush (spec.md
// §4.2). Acceptable because n is the number of outstanding timers, which is
// small in the intended workloads; no wheel bucketing is implemented.

package reactor

import "math"

// noDeadline signals "no timers survived this scan".
const noDeadline int64 = math.MaxInt64

// flushTimeouts walks the timers list once, moving every Completion whose
// deadline has passed into ready, and returns the minimum remaining
// nanoseconds among the survivors (noDeadline if none survived).
func flushTimeouts(timers *completionList, ready *completionList, now int64) int64 {
	minRemaining := noDeadline
	var prev *Completion
	c := timers.head
	for c != nil {
		next := c.next
		if now >= c.deadline {
			unlinkTimer(timers, prev, c)
			c.tag = queueNone
			ready.pushBack(c)
		} else {
			if remaining := c.deadline - now; remaining < minRemaining {
				minRemaining = remaining
			}
			prev = c
		}
		c = next
	}
	return minRemaining
}

// unlinkTimer removes c (whose predecessor in the list is prev, possibly
// nil if c is the head) from timers.
func unlinkTimer(timers *completionList, prev, c *Completion) {
	if prev == nil {
		timers.head = c.next
	} else {
		prev.next = c.next
	}
	if timers.tail == c {
		timers.tail = prev
	}
	c.next = nil
	timers.length--
}

// roundMillisHalfUp rounds ns to the nearest millisecond, half-up, and
// saturates to maxTimeoutMillis (spec.md §4.1 step 2: "never INFINITE").
func roundMillisHalfUp(ns int64) uint32 {
	if ns <= 0 {
		return 0
	}
	ms := (ns + 500_000) / 1_000_000
	if ms > int64(maxTimeoutMillis) {
		return maxTimeoutMillis
	}
	return uint32(ms)
}

// maxTimeoutMillis is DWORD_MAX-1: the IOCP wait must never be passed
// INFINITE as a rounded timer deadline.
const maxTimeoutMillis uint32 = 0xFFFFFFFE
