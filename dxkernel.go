// Package dxkernel turns captured GPU kernels into Direct3D 12 compute work.
//
// A kernel is described by a kernel.Description, produced by a capture stage
// that reads the host-language kernel method. dxkernel renders the
// description to HLSL, compiles it to DXIL with the DirectX Shader Compiler
// and records dispatches into application-owned command lists.
//
// Rendering only:
//
//	desc, err := kernel.LoadFile("scale.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	source, err := dxkernel.Render(desc, kernel.GroupSize{X: 8, Y: 8, Z: 1})
//
// Compiling and dispatching:
//
//	engine, err := dxkernel.NewEngine(dxkernel.DefaultConfig(), dxcLibraries)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	dev, err := engine.Attach(device)
//	site := dev.NewSite(desc, group)
//	sub, err := dev.Runner.Dispatch(ctx, site, dispatch.Size{X: 1024, Y: 1, Z: 1}, args)
//	// execute sub.List, wait for the fence, then:
//	sub.Release()
//
// The lower-level packages can be used on their own: hlsl renders, dxc
// compiles, shader caches, dispatch records and pool manages descriptors
// and command allocators.
package dxkernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/dispatch"
	"github.com/gogpu/dxkernel/dxc"
	"github.com/gogpu/dxkernel/hlsl"
	"github.com/gogpu/dxkernel/internal/logger"
	"github.com/gogpu/dxkernel/kernel"
	"github.com/gogpu/dxkernel/pool"
	"github.com/gogpu/dxkernel/shader"
)

// Version is the module version reported by kernelc.
const Version = "0.1.0-dev"

// SetLogger configures the logger for dxkernel and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by dxkernel:
//   - [slog.LevelDebug]: cache hits and misses, compile timings, compiler
//     threads and recorded dispatches
//   - [slog.LevelInfo]: native library extraction and loading
//   - [slog.LevelWarn]: allocators dropped after a failed reset
//   - [slog.LevelError]: the native compiler could not be loaded
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Get()
}

// Render validates desc and groupSize and returns the HLSL program.
func Render(desc *kernel.Description, groupSize kernel.GroupSize) (string, error) {
	if err := groupSize.Validate(); err != nil {
		return "", err
	}
	if err := desc.Validate(); err != nil {
		return "", err
	}
	if err := hlsl.CheckNames(desc); err != nil {
		return "", err
	}
	p := hlsl.Render(groupSize, desc)
	defer p.Release()
	return p.String(), nil
}

// Compile renders desc and compiles it with compiler, bypassing any cache.
func Compile(ctx context.Context, compiler shader.Compiler, desc *kernel.Description, groupSize kernel.GroupSize) ([]byte, error) {
	source, err := Render(desc, groupSize)
	if err != nil {
		return nil, err
	}
	bc, err := compiler.Compile(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("dxkernel: compile kernel %s: %w", desc.Name, err)
	}
	return bc, nil
}

// Engine owns a compiler and the shader cache in front of it. It is safe
// for concurrent use.
type Engine struct {
	compiler shader.Compiler
	closer   io.Closer
	shaders  *shader.Cache
}

// NewEngine returns an engine configured by cfg. libs holds the native
// compiler libraries as <arch>/<file>; it may be nil when cfg.LibraryDir
// is set. The libraries are loaded on the first compile.
func NewEngine(cfg Config, libs fs.FS) (*Engine, error) {
	c := dxc.New(cfg.CompilerOptions(libs))
	e, err := newEngine(c, c, cfg.CacheSize)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(compiler shader.Compiler, closer io.Closer, cacheSize int) (*Engine, error) {
	shaders, err := shader.NewCache(compiler, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{compiler: compiler, closer: closer, shaders: shaders}, nil
}

// Shaders returns the engine's shader cache.
func (e *Engine) Shaders() *shader.Cache {
	return e.shaders
}

// Compile returns the bytecode of desc, from embedded bytecode, the cache,
// or a fresh compile.
func (e *Engine) Compile(ctx context.Context, desc *kernel.Description, groupSize kernel.GroupSize) ([]byte, error) {
	s, err := e.shaders.Load(ctx, desc, groupSize)
	if err != nil {
		return nil, err
	}
	return s.Bytecode, nil
}

// Invalidate drops the cached bytecode of the named kernel, so the next
// compile renders its current description again. Sites that already hold
// bytecode keep it.
func (e *Engine) Invalidate(name string) {
	e.shaders.Invalidate(name)
}

// Close stops the compiler threads.
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Device is an engine attached to one D3D12 device.
type Device struct {
	Runner      *dispatch.Runner
	Allocators  *pool.CommandAllocatorPool
	Descriptors *pool.DescriptorAllocator
}

// Attach creates the pools and dispatch runner for device.
func (e *Engine) Attach(device d3d12.Device) (*Device, error) {
	allocators := pool.NewCommandAllocatorPool(device)
	runner, err := dispatch.NewRunner(device, e.shaders, allocators)
	if err != nil {
		return nil, err
	}
	return &Device{
		Runner:      runner,
		Allocators:  allocators,
		Descriptors: pool.NewDeviceDescriptorAllocator(device),
	}, nil
}

// NewSite returns a dispatch call site for desc on this device's runner.
func (d *Device) NewSite(desc *kernel.Description, groupSize kernel.GroupSize) *dispatch.Site {
	return dispatch.NewSite(desc, groupSize)
}

// NewView rents a descriptor for a resource view and writes it with write.
func (d *Device) NewView(write func(d3d12.CPUDescriptorHandle)) *dispatch.View {
	return dispatch.NewView(d.Descriptors, write)
}

// Close releases the cached pipelines and pooled command allocators. The
// GPU must be idle.
func (d *Device) Close() {
	d.Runner.Close()
	d.Allocators.Dispose()
}

// IsCompilationError reports whether err is a compiler rejection, as opposed
// to a load failure, cancellation or invalid description.
func IsCompilationError(err error) bool {
	var cerr *dxc.CompilationError
	return errors.As(err, &cerr)
}
