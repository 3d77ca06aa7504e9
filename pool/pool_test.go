package pool

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/d3d12/d3d12test"
)

func newTestAllocator() *DescriptorAllocator {
	return NewDeviceDescriptorAllocator(&d3d12test.Device{})
}

func TestDescriptorAllocator_Precomputed(t *testing.T) {
	a := newTestAllocator()
	require.Equal(t, DescriptorCapacity, a.Capacity())
	require.Equal(t, DescriptorCapacity, a.Available())

	first := a.Rent()
	second := a.Rent()
	assert.Equal(t, d3d12test.CPUBase, first.CPU)
	assert.Equal(t, d3d12test.GPUBase, first.GPU)
	assert.Equal(t, d3d12test.CPUBase.Offset(1, d3d12test.Increment), second.CPU)
	assert.Equal(t, d3d12test.GPUBase.Offset(1, d3d12test.Increment), second.GPU)
	assert.Equal(t, DescriptorCapacity-2, a.Available())
}

func TestDescriptorAllocator_Exhaustion(t *testing.T) {
	a := newTestAllocator()

	seen := make(map[d3d12.DescriptorPair]bool, DescriptorCapacity)
	for i := 0; i < DescriptorCapacity; i++ {
		p := a.Rent()
		require.False(t, seen[p], "pair %v rented twice", p)
		seen[p] = true
	}
	assert.Zero(t, a.Available())
	assert.PanicsWithValue(t, "pool: descriptor allocator exhausted (capacity 4096)", func() { a.Rent() })
}

func TestDescriptorAllocator_Overflow(t *testing.T) {
	a := newTestAllocator()
	assert.PanicsWithValue(t, "pool: descriptor allocator overflow (capacity 4096)", func() {
		a.Return(d3d12.DescriptorPair{CPU: 1, GPU: 1})
	})

	p := a.Rent()
	a.Return(p)
	assert.Panics(t, func() { a.Return(p) })
}

func TestDescriptorAllocator_Wraps(t *testing.T) {
	a := newTestAllocator()

	// Push head and tail around the ring several times.
	for i := 0; i < 3*DescriptorCapacity+7; i++ {
		a.Return(a.Rent())
	}
	assert.Equal(t, DescriptorCapacity, a.Available())

	seen := make(map[d3d12.DescriptorPair]bool, DescriptorCapacity)
	for i := 0; i < DescriptorCapacity; i++ {
		seen[a.Rent()] = true
	}
	assert.Len(t, seen, DescriptorCapacity)
}

func TestDescriptorAllocator_ConcurrentNoDuplicates(t *testing.T) {
	a := newTestAllocator()

	var mu sync.Mutex
	live := make(map[d3d12.DescriptorPair]bool)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 2000; i++ {
				p := a.Rent()
				mu.Lock()
				if live[p] {
					mu.Unlock()
					return errors.New("duplicate live handle")
				}
				live[p] = true
				mu.Unlock()

				mu.Lock()
				delete(live, p)
				mu.Unlock()
				a.Return(p)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, DescriptorCapacity, a.Available())
}

func TestCommandAllocatorPool_CreatesWhenEmpty(t *testing.T) {
	dev := &d3d12test.Device{}
	p := NewCommandAllocatorPool(dev)

	a, err := p.Get()
	require.NoError(t, err)
	b, err := p.Get()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Len(t, dev.Allocators(), 2)

	// Fresh allocators are not reset.
	assert.Zero(t, a.(*d3d12test.Allocator).Resets())
}

func TestCommandAllocatorPool_FIFOAndLazyReset(t *testing.T) {
	dev := &d3d12test.Device{}
	p := NewCommandAllocatorPool(dev)

	a, _ := p.Get()
	b, _ := p.Get()
	p.Enqueue(a)
	p.Enqueue(b)
	assert.Equal(t, 2, p.Len())
	assert.Zero(t, a.(*d3d12test.Allocator).Resets(), "enqueue does not reset")

	got, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 1, a.(*d3d12test.Allocator).Resets())

	got, err = p.Get()
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Len(t, dev.Allocators(), 2, "pooled allocators are reused")
}

func TestCommandAllocatorPool_CreateError(t *testing.T) {
	boom := errors.New("device removed")
	p := NewCommandAllocatorPool(&d3d12test.Device{FailAllocator: boom})

	_, err := p.Get()
	assert.ErrorIs(t, err, boom)
}

type badAllocator struct {
	released int
}

func (a *badAllocator) Reset() error { return errors.New("still in flight") }
func (a *badAllocator) Release()     { a.released++ }

func TestCommandAllocatorPool_ResetFailure(t *testing.T) {
	dev := &d3d12test.Device{}
	p := NewCommandAllocatorPool(dev)

	bad := &badAllocator{}
	p.Enqueue(bad)

	a, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, bad.released)
	assert.IsType(t, &d3d12test.Allocator{}, a)
	assert.Zero(t, p.Len())
}

func TestCommandAllocatorPool_Dispose(t *testing.T) {
	dev := &d3d12test.Device{}
	p := NewCommandAllocatorPool(dev)

	a, _ := p.Get()
	b, _ := p.Get()
	c, _ := p.Get()
	p.Enqueue(a)
	p.Enqueue(b)

	p.Dispose()
	p.Dispose()
	assert.Equal(t, 1, a.(*d3d12test.Allocator).Released())
	assert.Equal(t, 1, b.(*d3d12test.Allocator).Released())
	assert.Zero(t, c.(*d3d12test.Allocator).Released())

	// Late returns are released right away.
	p.Enqueue(c)
	assert.Equal(t, 1, c.(*d3d12test.Allocator).Released())
	assert.Zero(t, p.Len())

	assert.Panics(t, func() { _, _ = p.Get() })
}
