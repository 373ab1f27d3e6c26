//go:build windows
// +build windows

// File: pool/bufferpool_windows.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kern32           = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAlloc = kern32.NewProc("VirtualAlloc")
)

const memLargePages = 0x20000000

type windowsBuffer struct {
	data   []byte
	pool   *windowsBufferPool
	numaID int
}

func (b *windowsBuffer) Bytes() []byte { return b.data }
func (b *windowsBuffer) Release()      { b.pool.Put(b) }
func (b *windowsBuffer) NUMANode() int { return b.numaID }
func (b *windowsBuffer) Slice(from, to int) Buffer {
	return &windowsBuffer{data: b.data[from:to], pool: b.pool, numaID: b.numaID}
}

// windowsBufferPool keeps a free list per NUMA node backed by the generic
// RingBuffer rather than a buffered channel, so Put/Get stay
// allocation-free on the hot path once the ring has warmed up.
type windowsBufferPool struct {
	free   *RingBuffer[*windowsBuffer]
	numaID int
}

func newBufferPool(numaNode int) BufferPool {
	return &windowsBufferPool{
		free:   NewRingBuffer[*windowsBuffer](1024),
		numaID: numaNode,
	}
}

func (p *windowsBufferPool) Get(size int) Buffer {
	if buf, ok := p.free.Dequeue(); ok {
		if cap(buf.data) < size {
			buf.data = make([]byte, size)
		} else {
			buf.data = buf.data[:size]
		}
		return buf
	}
	addr, _, _ := procVirtualAlloc.Call(
		0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT|memLargePages,
		windows.PAGE_READWRITE,
	)
	if addr == 0 {
		return &windowsBuffer{data: make([]byte, size), pool: p, numaID: p.numaID}
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &windowsBuffer{data: data, pool: p, numaID: p.numaID}
}

func (p *windowsBufferPool) Put(b Buffer) {
	if wb, ok := b.(*windowsBuffer); ok {
		p.free.Enqueue(wb)
	}
}
