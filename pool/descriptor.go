// Package pool holds the fixed-budget descriptor handle ring and the
// command allocator pool shared by concurrent dispatch call sites.
//
// Both pools treat misuse as a programming error and panic: the descriptor
// ring has a fixed capacity chosen at design time, so running out of handles
// or returning more than were rented is never a transient condition.
package pool

import (
	"fmt"
	"sync"

	"github.com/gogpu/dxkernel/d3d12"
)

// DescriptorCapacity is the number of descriptor handle pairs in a
// DescriptorAllocator.
const DescriptorCapacity = 4096

// DescriptorAllocator is a bounded ring of CPU/GPU descriptor handle pairs.
// It is safe for concurrent use.
type DescriptorAllocator struct {
	mu        sync.Mutex
	ring      []d3d12.DescriptorPair
	head      int
	tail      int
	available int
}

// NewDescriptorAllocator returns a full allocator whose pairs are the first
// DescriptorCapacity descriptors after start.
func NewDescriptorAllocator(start d3d12.DescriptorPair, increment uint32) *DescriptorAllocator {
	ring := make([]d3d12.DescriptorPair, DescriptorCapacity)
	for i := range ring {
		ring[i] = d3d12.DescriptorPair{
			CPU: start.CPU.Offset(uint32(i), increment),
			GPU: start.GPU.Offset(uint32(i), increment),
		}
	}
	return &DescriptorAllocator{ring: ring, available: len(ring)}
}

// NewDeviceDescriptorAllocator builds an allocator over the descriptor heap
// reported by device.
func NewDeviceDescriptorAllocator(device d3d12.Device) *DescriptorAllocator {
	return NewDescriptorAllocator(device.DescriptorHeapStart(), device.DescriptorIncrement())
}

// Rent takes the pair at the head of the ring. It panics when no pair is
// available.
func (a *DescriptorAllocator) Rent() d3d12.DescriptorPair {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.available == 0 {
		panic(fmt.Sprintf("pool: descriptor allocator exhausted (capacity %d)", len(a.ring)))
	}
	p := a.ring[a.head]
	a.head = (a.head + 1) % len(a.ring)
	a.available--
	return p
}

// Return puts a rented pair back at the tail of the ring. It panics when the
// ring is already full.
func (a *DescriptorAllocator) Return(p d3d12.DescriptorPair) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.available == len(a.ring) {
		panic(fmt.Sprintf("pool: descriptor allocator overflow (capacity %d)", len(a.ring)))
	}
	a.ring[a.tail] = p
	a.tail = (a.tail + 1) % len(a.ring)
	a.available++
}

// Available returns the number of pairs that can be rented.
func (a *DescriptorAllocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available
}

// Capacity returns the size of the ring.
func (a *DescriptorAllocator) Capacity() int {
	return len(a.ring)
}
