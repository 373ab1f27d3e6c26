// Package pool
// Author: momentics <momentics@gmail.com>
//
// NUMA-aware byte buffer pooling for the IOCP reactor. Buffers handed out
// here back the AcceptEx dual-address scratch area and caller-provided
// send/recv buffers.
// See bufferpool.go, bufferpool_windows.go, ring.go for implementation details.
package pool
