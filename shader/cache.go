package shader

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/gogpu/dxkernel/dxc"
	"github.com/gogpu/dxkernel/hlsl"
	"github.com/gogpu/dxkernel/internal/logger"
	"github.com/gogpu/dxkernel/kernel"
)

// DefaultCacheSize is the number of compiled kernels kept by a Cache when
// no size is given.
const DefaultCacheSize = 256

// Compiler turns rendered HLSL into bytecode. *dxc.Compiler implements it.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// Key identifies a compiled kernel. Kernels are identified by name, so two
// descriptions with the same name must render the same program.
type Key struct {
	Kernel    string
	GroupSize kernel.GroupSize
}

func (k Key) String() string {
	return k.Kernel + "@" + k.GroupSize.String()
}

// Cache holds run-time compiled bytecode. Concurrent misses on the same key
// share a single compile. Failed compiles are not cached. It is safe for
// concurrent use.
type Cache struct {
	compiler Compiler
	entries  *lru.Cache[Key, []byte]
	group    singleflight.Group
}

// NewCache returns a cache holding at most size kernels. A size of zero or
// less means DefaultCacheSize.
func NewCache(compiler Compiler, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[Key, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("shader: create cache: %w", err)
	}
	return &Cache{compiler: compiler, entries: entries}, nil
}

// Load returns the bytecode for desc at groupSize. Embedded bytecode built
// for the same group size is returned without compiling; anything else is
// rendered and compiled once per Key.
func (c *Cache) Load(ctx context.Context, desc *kernel.Description, groupSize kernel.GroupSize) (CompiledShader, error) {
	if e := desc.Embedded; e != nil && e.GroupSize == groupSize && len(e.Bytecode) > 0 {
		logger.Get().Debug("shader: using embedded bytecode", "kernel", desc.Name, "group", groupSize.String())
		return CompiledShader{Variant: Embedded, Bytecode: e.Bytecode}, nil
	}

	key := Key{Kernel: desc.Name, GroupSize: groupSize}
	if bc, ok := c.entries.Get(key); ok {
		logger.Get().Debug("shader: cache hit", "key", key.String())
		return CompiledShader{Variant: Dynamic, Bytecode: bc}, nil
	}

	for {
		v, err, shared := c.group.Do(key.String(), func() (any, error) {
			return c.compile(ctx, key, desc)
		})
		// A shared flight cancelled by another caller's context is retried
		// under ours.
		if err != nil && shared && errors.Is(err, dxc.ErrCancelled) && ctx.Err() == nil {
			continue
		}
		if err != nil {
			return CompiledShader{}, err
		}
		return CompiledShader{Variant: Dynamic, Bytecode: v.([]byte)}, nil
	}
}

func (c *Cache) compile(ctx context.Context, key Key, desc *kernel.Description) ([]byte, error) {
	if bc, ok := c.entries.Get(key); ok {
		return bc, nil
	}
	logger.Get().Debug("shader: cache miss", "key", key.String())

	if err := key.GroupSize.Validate(); err != nil {
		return nil, fmt.Errorf("shader: kernel %s: %w", desc.Name, err)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("shader: kernel %s: %w", desc.Name, err)
	}
	if err := hlsl.CheckNames(desc); err != nil {
		return nil, fmt.Errorf("shader: kernel %s: %w", desc.Name, err)
	}

	program := hlsl.Render(key.GroupSize, desc)
	defer program.Release()

	bc, err := c.compiler.Compile(ctx, program.String())
	if err != nil {
		return nil, fmt.Errorf("shader: compile kernel %s: %w", desc.Name, err)
	}
	c.entries.Add(key, bc)
	return bc, nil
}

// Bind loads desc into an unset loader.
func (c *Cache) Bind(ctx context.Context, l *Loader, desc *kernel.Description, groupSize kernel.GroupSize) error {
	s, err := c.Load(ctx, desc, groupSize)
	if err != nil {
		return err
	}
	switch s.Variant {
	case Embedded:
		l.LoadEmbeddedBytecode(s.Bytecode)
	default:
		l.LoadDynamicBytecode(s.Bytecode)
	}
	return nil
}

// Len returns the number of cached kernels.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Invalidate drops the cached bytecode of every group size of the named
// kernel and reports how many entries were dropped. Call it when a
// description changes but keeps its name.
func (c *Cache) Invalidate(name string) int {
	n := 0
	for _, k := range c.entries.Keys() {
		if k.Kernel == name && c.entries.Remove(k) {
			n++
		}
	}
	if n > 0 {
		logger.Get().Debug("shader: invalidated kernel", "kernel", name, "entries", n)
	}
	return n
}

// Purge drops every cached kernel.
func (c *Cache) Purge() {
	c.entries.Purge()
}
