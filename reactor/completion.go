// File: reactor/completion.go
// Author: momentics <momentics@gmail.com>
//
// Completion is the user-owned control block tying a submitted operation,
// its callback, and its op-specific state together (spec.md §3). Its
// intrusive next-link is shared by the ready queue and the timers list;
// membership is mutually exclusive at any instant, which queueTag records
// and pushBack asserts on every push, in all builds.

package reactor

// queueTag tracks which intrusive list currently owns a Completion, so a
// completion can never be linked onto two lists simultaneously (spec.md §8,
// invariant 7).
type queueTag int

const (
	queueNone queueTag = iota
	queueTimers
	queueCompleted
)

// Completion is the control block a caller allocates immediately before
// submit and must not mutate or free until its callback returns (spec.md
// §3, §5). The engine only ever appends/removes it from one intrusive list
// at a time via next.
type Completion struct {
	next *Completion
	tag  queueTag

	op       Op
	ctx      any
	payload  any // concrete *acceptOp / *connectOp / ... set by Submit*
	deadline int64
}

// completionList is a singly-linked intrusive FIFO. Used for both the
// ready queue (completed) and the timer list (timeouts).
type completionList struct {
	head, tail *Completion
	tag        queueTag
	length     int
}

func (l *completionList) empty() bool { return l.head == nil }

func (l *completionList) pushBack(c *Completion) {
	if c.tag != queueNone {
		panic("reactor: completion already queued on another list")
	}
	c.tag = l.tag
	c.next = nil
	if l.tail == nil {
		l.head = c
	} else {
		l.tail.next = c
	}
	l.tail = c
	l.length++
}

// drainAll detaches the whole list and resets it to empty, returning the
// detached chain head. This backs the flush's snapshot-then-invoke
// discipline (spec.md §4.1 step 4): callbacks invoked from the snapshot
// may submit new completions without observing themselves mid-drain,
// because the live list is already empty by the time any callback runs.
func (l *completionList) drainAll() *Completion {
	head := l.head
	l.head, l.tail = nil, nil
	l.length = 0
	for c := head; c != nil; c = c.next {
		c.tag = queueNone
	}
	return head
}
