// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity ring buffer used as each NUMA pool's free list. The
// reactor's callers, like the reactor itself, run single-threaded
// (spec.md §5) — there is no second goroutine racing Get/Put against the
// ready/timer queues, so this drops the teacher's cross-thread atomics and
// cache-line padding in favor of a plain indexed slice.

package pool

// RingBuffer is a fixed-capacity ring buffer (power-of-two size).
type RingBuffer[T any] struct {
	data []T
	mask uint64
	head uint64
	tail uint64
}

// NewRingBuffer allocates a ring buffer with size (must be power of two).
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	if size == 0 || (size&(size-1)) != 0 {
		panic("ring buffer size must be power of two")
	}
	return &RingBuffer[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds an item; returns false if full.
func (r *RingBuffer[T]) Enqueue(val T) bool {
	if r.tail-r.head == uint64(len(r.data)) {
		return false
	}
	r.data[r.tail&r.mask] = val
	r.tail++
	return true
}

// Dequeue removes and returns (item, ok); ok==false if empty.
func (r *RingBuffer[T]) Dequeue() (res T, ok bool) {
	if r.head == r.tail {
		return res, false
	}
	idx := r.head & r.mask
	res = r.data[idx]
	var zero T
	r.data[idx] = zero
	r.head++
	return res, true
}

// Len returns number of items in the buffer.
func (r *RingBuffer[T]) Len() int {
	return int(r.tail - r.head)
}

// Cap returns logical buffer capacity.
func (r *RingBuffer[T]) Cap() int {
	return len(r.data)
}
