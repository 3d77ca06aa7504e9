// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxc

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gogpu/dxkernel/internal/logger"
)

// Compiler compiles HLSL to DXIL on a set of thread-affine workers.
// It is safe for concurrent use.
type Compiler struct {
	opts Options

	// backend loads the native libraries on first use.
	backend func() (backend, error)

	jobs      chan job
	closed    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// mu orders worker start against Close.
	mu sync.Mutex
	wg sync.WaitGroup
}

type job struct {
	ctx    context.Context
	source string
	done   chan jobResult
}

type jobResult struct {
	bytecode []byte
	err      error
}

// New returns a Compiler. Workers and native instances are created on the
// first call to Compile.
func New(opts Options) *Compiler {
	c := newCompiler(opts)
	c.backend = sync.OnceValues(func() (backend, error) {
		if err := process.ensure(&c.opts); err != nil {
			return nil, err
		}
		return newNativeBackend(process)
	})
	return c
}

func newCompiler(opts Options) *Compiler {
	return &Compiler{
		opts:   opts,
		jobs:   make(chan job),
		closed: make(chan struct{}),
	}
}

// Compile compiles source and returns the bytecode.
//
// It returns a *CompilationError when the compiler rejects the program or
// produces no bytecode, an error matching ErrCancelled when ctx is done
// before or after the native call, and a *LoadError when the native
// libraries cannot be loaded. A native call that has started always runs to
// completion.
func (c *Compiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	b, err := c.backend()
	if err != nil {
		return nil, err
	}
	c.startOnce.Do(func() { c.start(b) })

	j := job{ctx: ctx, source: source, done: make(chan jobResult, 1)}
	select {
	case c.jobs <- j:
	case <-ctx.Done():
		return nil, cancelled(ctx)
	case <-c.closed:
		return nil, ErrClosed
	}

	r := <-j.done
	return r.bytecode, r.err
}

// Close stops the workers and releases their native instances. Compile
// calls that are already running finish first.
func (c *Compiler) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		c.wg.Wait()
	})
	return nil
}

func (c *Compiler) start(b backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return
	default:
	}

	n := c.opts.threads()
	logger.Get().Debug("dxc: starting compiler threads", "threads", n, "profile", c.opts.ShaderModel.ComputeProfile())
	for i := 0; i < n; i++ {
		c.wg.Add(1)
		go c.worker(i, b)
	}
}

// worker owns one native instance for the lifetime of its OS thread. The
// thread is never unlocked, so it exits together with the goroutine.
func (c *Compiler) worker(id int, b backend) {
	defer c.wg.Done()
	runtime.LockOSThread()

	var inst instance
	defer func() {
		if inst != nil {
			inst.release()
			logger.Get().Debug("dxc: released compiler instance", "worker", id)
		}
	}()

	for {
		select {
		case <-c.closed:
			return
		case j := <-c.jobs:
			j.done <- c.run(id, b, &inst, j)
		}
	}
}

func (c *Compiler) run(id int, b backend, inst *instance, j job) jobResult {
	if j.ctx.Err() != nil {
		return jobResult{err: cancelled(j.ctx)}
	}

	if *inst == nil {
		created, err := b.newInstance()
		if err != nil {
			return jobResult{err: fmt.Errorf("dxc: create compiler instance: %w", err)}
		}
		*inst = created
		logger.Get().Debug("dxc: created compiler instance", "worker", id)
	}

	start := time.Now()
	res, err := (*inst).compile([]byte(j.source), c.opts.arguments())
	if err != nil {
		return jobResult{err: fmt.Errorf("dxc: %w", err)}
	}

	if j.ctx.Err() != nil {
		return jobResult{err: cancelled(j.ctx)}
	}
	if !res.ok {
		return jobResult{err: &CompilationError{Message: cleanDiagnostics(res.diagnostics)}}
	}
	if len(res.bytecode) == 0 {
		return jobResult{err: &CompilationError{Message: cleanDiagnostics("The shader compiler produced no bytecode")}}
	}

	logger.Get().Debug("dxc: compiled program",
		"worker", id, "source_bytes", len(j.source), "bytecode_bytes", len(res.bytecode), "elapsed", time.Since(start))
	return jobResult{bytecode: res.bytecode}
}
