package pool

import (
	"fmt"
	"sync"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/internal/logger"
)

// AllocatorFactory creates command allocators. d3d12.Device satisfies it.
type AllocatorFactory interface {
	CreateCommandAllocator() (d3d12.CommandAllocator, error)
}

// CommandAllocatorPool is an unbounded FIFO of command allocators. Pooled
// allocators are dirty: they are reset when taken out, not when put back.
// It is safe for concurrent use.
type CommandAllocatorPool struct {
	factory AllocatorFactory

	mu       sync.Mutex
	queue    []d3d12.CommandAllocator
	disposed bool
	created  int
}

// NewCommandAllocatorPool returns an empty pool that creates allocators
// from factory on demand.
func NewCommandAllocatorPool(factory AllocatorFactory) *CommandAllocatorPool {
	return &CommandAllocatorPool{factory: factory}
}

// Get returns a reset allocator, reusing the oldest pooled one when there is
// one. An allocator that fails to reset is released and replaced. Get panics
// after Dispose.
func (p *CommandAllocatorPool) Get() (d3d12.CommandAllocator, error) {
	for {
		a, ok := p.dequeue()
		if !ok {
			break
		}
		if err := a.Reset(); err != nil {
			logger.Get().Warn("pool: dropping command allocator that failed to reset", "err", err)
			a.Release()
			continue
		}
		return a, nil
	}

	a, err := p.factory.CreateCommandAllocator()
	if err != nil {
		return nil, fmt.Errorf("pool: create command allocator: %w", err)
	}

	p.mu.Lock()
	p.created++
	n := p.created
	p.mu.Unlock()
	logger.Get().Debug("pool: created command allocator", "total", n)
	return a, nil
}

func (p *CommandAllocatorPool) dequeue() (d3d12.CommandAllocator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		panic("pool: command allocator pool used after Dispose")
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	a := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return a, true
}

// Enqueue returns a used allocator to the pool without resetting it. The
// GPU may still be executing lists recorded with it. After Dispose the
// allocator is released immediately.
func (p *CommandAllocatorPool) Enqueue(a d3d12.CommandAllocator) {
	p.mu.Lock()
	if !p.disposed {
		p.queue = append(p.queue, a)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	a.Release()
}

// Dispose releases every pooled allocator exactly once. It is idempotent.
func (p *CommandAllocatorPool) Dispose() {
	p.mu.Lock()
	queue := p.queue
	p.queue = nil
	p.disposed = true
	p.mu.Unlock()

	for _, a := range queue {
		a.Release()
	}
	if len(queue) > 0 {
		logger.Get().Debug("pool: released command allocators", "count", len(queue))
	}
}

// Len returns the number of pooled allocators.
func (p *CommandAllocatorPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
