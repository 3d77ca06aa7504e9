package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/internal/logger"
	"github.com/gogpu/dxkernel/kernel"
	"github.com/gogpu/dxkernel/pool"
	"github.com/gogpu/dxkernel/shader"
)

// DefaultPipelineCacheSize is the number of pipelines a Runner keeps.
const DefaultPipelineCacheSize = 64

// Size is the total number of threads to run on each axis.
type Size struct {
	X, Y, Z uint32
}

// Groups returns the number of thread groups of size g needed to cover s.
func (s Size) Groups(g kernel.GroupSize) [3]uint32 {
	return [3]uint32{ceilDiv(s.X, g.X), ceilDiv(s.Y, g.Y), ceilDiv(s.Z, g.Z)}
}

func ceilDiv(n, d uint32) uint32 {
	return uint32((uint64(n) + uint64(d) - 1) / uint64(d))
}

// Arguments are the captured values of one dispatch.
type Arguments struct {
	// Values holds every captured field by name. See PackConstants.
	Values map[string]any

	// Resources holds one descriptor table per captured resource, in
	// kernel.Description.SortedResources order.
	Resources []d3d12.GPUDescriptorHandle

	// Output is the implicit output target of a side-effecting kernel.
	Output d3d12.GPUDescriptorHandle
}

// Site is one call site of a kernel. The bytecode it runs, embedded or
// compiled, is decided by its first dispatch and kept for every later one.
type Site struct {
	Kernel    *kernel.Description
	GroupSize kernel.GroupSize

	mu     sync.Mutex
	loader shader.Loader
}

// NewSite returns a call site running desc with groupSize threads per group.
func NewSite(desc *kernel.Description, groupSize kernel.GroupSize) *Site {
	return &Site{Kernel: desc, GroupSize: groupSize}
}

// Shader returns the bytecode of the site, loading it through shaders on
// first use.
func (s *Site) Shader(ctx context.Context, shaders *shader.Cache) (shader.CompiledShader, error) {
	if s.loader.Loaded() {
		return s.loader.GetCachedShader(), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loader.Loaded() {
		if err := shaders.Bind(ctx, &s.loader, s.Kernel, s.GroupSize); err != nil {
			return shader.CompiledShader{}, err
		}
	}
	return s.loader.GetCachedShader(), nil
}

// pipeline is a cached pipeline state. Submissions hold a reference until
// they are released; an evicted pipeline is released with its last
// reference.
type pipeline struct {
	pso      d3d12.PipelineState
	bytecode []byte
	refs     int
	evicted  bool
}

// Runner records complete kernel dispatches. It is safe for concurrent use.
type Runner struct {
	device     d3d12.Device
	shaders    *shader.Cache
	allocators *pool.CommandAllocatorPool

	// mu guards pipelines and the reference counts of their entries.
	mu        sync.Mutex
	pipelines *lru.Cache[shader.Key, *pipeline]
}

// NewRunner returns a runner that compiles through shaders and records with
// allocators from allocators.
func NewRunner(device d3d12.Device, shaders *shader.Cache, allocators *pool.CommandAllocatorPool) (*Runner, error) {
	r := &Runner{device: device, shaders: shaders, allocators: allocators}
	pipelines, err := lru.NewWithEvict[shader.Key, *pipeline](DefaultPipelineCacheSize, r.evict)
	if err != nil {
		return nil, fmt.Errorf("dispatch: create pipeline cache: %w", err)
	}
	r.pipelines = pipelines
	return r, nil
}

// evict runs with r.mu held.
func (r *Runner) evict(_ shader.Key, p *pipeline) {
	p.evicted = true
	if p.refs == 0 {
		p.pso.Release()
	}
}

// Dispatch records the kernel of site over size threads into a new closed
// command list. The caller executes Submission.List and calls
// Submission.Release once the GPU has finished with it.
func (r *Runner) Dispatch(ctx context.Context, site *Site, size Size, args Arguments) (*Submission, error) {
	desc := site.Kernel
	if len(args.Resources) != len(desc.Resources) {
		return nil, fmt.Errorf("dispatch: kernel %s captures %d resources, got %d",
			desc.Name, len(desc.Resources), len(args.Resources))
	}

	layout, err := kernel.Layout(desc)
	if err != nil {
		return nil, fmt.Errorf("dispatch: kernel %s: %w", desc.Name, err)
	}
	payload, err := pack(layout, args.Values)
	if err != nil {
		return nil, err
	}

	compiled, err := site.Shader(ctx, r.shaders)
	if err != nil {
		return nil, err
	}

	key := shader.Key{Kernel: desc.Name, GroupSize: site.GroupSize}
	p, err := r.acquire(key, compiled, RootSignature(desc, layout.DWords()))
	if err != nil {
		return nil, err
	}

	alloc, err := r.allocators.Get()
	if err != nil {
		r.release(p)
		return nil, fmt.Errorf("dispatch: kernel %s: %w", desc.Name, err)
	}
	list, err := r.device.CreateCommandList(alloc, p.pso)
	if err != nil {
		r.allocators.Enqueue(alloc)
		r.release(p)
		return nil, fmt.Errorf("dispatch: kernel %s: create command list: %w", desc.Name, err)
	}

	data := NewDataLoader(list, desc.Kind)
	data.LoadDispatchSize(size.X, size.Y, size.Z)
	data.LoadConstants(payload)
	if desc.Kind == kernel.SideEffecting {
		data.LoadOutputTarget(args.Output)
	}
	for _, table := range args.Resources {
		data.LoadResource(table)
	}

	groups := size.Groups(site.GroupSize)
	list.Dispatch(groups[0], groups[1], groups[2])
	if err := list.Close(); err != nil {
		r.allocators.Enqueue(alloc)
		r.release(p)
		return nil, fmt.Errorf("dispatch: kernel %s: close command list: %w", desc.Name, err)
	}

	logger.Get().Debug("dispatch: recorded kernel",
		"kernel", desc.Name, "variant", compiled.Variant.String(), "groups", groups, "tables", data.Resources())
	return &Submission{
		List:      list,
		Shader:    compiled,
		Groups:    groups,
		allocator: alloc,
		pipeline:  p,
		runner:    r,
	}, nil
}

// acquire returns the pipeline of key with one more reference, creating it
// when it is missing or was built from other bytecode.
func (r *Runner) acquire(key shader.Key, compiled shader.CompiledShader, root d3d12.RootSignature) (*pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pipelines.Get(key); ok {
		if sameBytes(p.bytecode, compiled.Bytecode) {
			p.refs++
			return p, nil
		}
		r.pipelines.Remove(key)
	}
	pso, err := r.device.CreateComputePipeline(compiled.Bytecode, root)
	if err != nil {
		return nil, fmt.Errorf("dispatch: create pipeline for %s: %w", key, err)
	}
	p := &pipeline{pso: pso, bytecode: compiled.Bytecode, refs: 1}
	r.pipelines.Add(key, p)
	return p, nil
}

func (r *Runner) release(p *pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.refs--
	if p.refs == 0 && p.evicted {
		p.pso.Release()
	}
}

// sameBytes reports whether a and b are the same slice of memory.
func sameBytes(a, b []byte) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

// Close drops every cached pipeline. Pipelines of unreleased submissions are
// released with their last submission.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines.Purge()
}

// Submission is a recorded dispatch waiting for execution.
type Submission struct {
	List   d3d12.CommandList
	Shader shader.CompiledShader
	Groups [3]uint32

	allocator d3d12.CommandAllocator
	pipeline  *pipeline
	runner    *Runner
	released  atomic.Bool
}

// Release returns the command allocator to its pool and drops the
// submission's hold on its pipeline. Call it after the fence signalled for
// List. It is idempotent.
func (s *Submission) Release() {
	if s.released.Swap(true) {
		return
	}
	s.runner.allocators.Enqueue(s.allocator)
	s.runner.release(s.pipeline)
}
