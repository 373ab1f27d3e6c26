//go:build !windows
// +build !windows

// File: pool/bufferpool_stub.go
// Author: momentics <momentics@gmail.com>
//
// Plain heap-backed buffer pool for non-Windows builds. The IOCP reactor
// itself is Windows-only (see reactor/reactor_other.go); this keeps the
// module importable from cross-platform code without pulling in the
// Windows-specific VirtualAlloc path.
package pool

type heapBuffer struct {
	data []byte
	pool *heapBufferPool
}

func (b *heapBuffer) Bytes() []byte { return b.data }
func (b *heapBuffer) Release()      { b.pool.Put(b) }
func (b *heapBuffer) NUMANode() int { return -1 }
func (b *heapBuffer) Slice(from, to int) Buffer {
	return &heapBuffer{data: b.data[from:to], pool: b.pool}
}

type heapBufferPool struct {
	free *RingBuffer[*heapBuffer]
}

func newBufferPool(int) BufferPool {
	return &heapBufferPool{free: NewRingBuffer[*heapBuffer](1024)}
}

func (p *heapBufferPool) Get(size int) Buffer {
	if buf, ok := p.free.Dequeue(); ok {
		if cap(buf.data) < size {
			buf.data = make([]byte, size)
		} else {
			buf.data = buf.data[:size]
		}
		return buf
	}
	return &heapBuffer{data: make([]byte, size), pool: p}
}

func (p *heapBufferPool) Put(b Buffer) {
	if hb, ok := b.(*heapBuffer); ok {
		p.free.Enqueue(hb)
	}
}
