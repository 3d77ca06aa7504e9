package shader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/dxkernel/dxc"
	"github.com/gogpu/dxkernel/kernel"
)

// fakeCompiler returns the source length as bytecode and counts calls.
type fakeCompiler struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (f *fakeCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	if !strings.Contains(source, "[numthreads(") {
		return nil, errors.New("not a compute program")
	}
	return []byte(fmt.Sprintf("DXIL:%d", len(source))), nil
}

func scaleKernel() *kernel.Description {
	return &kernel.Description{
		Name:   "scale",
		Kind:   kernel.ValueProducing,
		Fields: []kernel.Field{{Name: "amount", Type: "float"}},
		Resources: []kernel.Resource{
			{Name: "input", Type: "StructuredBuffer<float>", Class: kernel.ReadOnly},
			{Name: "output", Type: "RWStructuredBuffer<float>", Class: kernel.ReadWrite},
		},
		Entry: "{\n    output[ThreadIds.x] = input[ThreadIds.x] * amount;\n}",
	}
}

const (
	testTimeout = 5 * time.Second
	testTick    = time.Millisecond
)

var group8 = kernel.GroupSize{X: 8, Y: 8, Z: 1}

func TestLoader(t *testing.T) {
	var l Loader
	assert.False(t, l.Loaded())
	assert.PanicsWithValue(t, "shader: loader not initialized", func() { l.GetCachedShader() })

	l.LoadDynamicBytecode([]byte{1, 2})
	assert.True(t, l.Loaded())
	s := l.GetCachedShader()
	assert.Equal(t, Dynamic, s.Variant)
	assert.Equal(t, []byte{1, 2}, s.Bytecode)

	assert.PanicsWithValue(t, "shader: loader already initialized", func() { l.LoadDynamicBytecode([]byte{3}) })
	assert.PanicsWithValue(t, "shader: loader already initialized", func() { l.LoadEmbeddedBytecode([]byte{3}) })
	assert.Equal(t, []byte{1, 2}, l.GetCachedShader().Bytecode)
}

func TestLoader_Embedded(t *testing.T) {
	var l Loader
	l.LoadEmbeddedBytecode([]byte{9})
	assert.Equal(t, Embedded, l.GetCachedShader().Variant)
	assert.Panics(t, func() { l.LoadEmbeddedBytecode([]byte{9}) })
}

func TestLoader_ConcurrentSetOnce(t *testing.T) {
	var l Loader
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = recover() }()
			l.LoadDynamicBytecode([]byte{1})
			wins.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "embedded", Embedded.String())
	assert.Equal(t, "dynamic", Dynamic.String())
	assert.Equal(t, "Variant(7)", Variant(7).String())
}

func TestCache_CompilesOnce(t *testing.T) {
	fc := &fakeCompiler{}
	c, err := NewCache(fc, 0)
	require.NoError(t, err)

	first, err := c.Load(context.Background(), scaleKernel(), group8)
	require.NoError(t, err)
	assert.Equal(t, Dynamic, first.Variant)
	assert.NotEmpty(t, first.Bytecode)

	second, err := c.Load(context.Background(), scaleKernel(), group8)
	require.NoError(t, err)
	assert.Equal(t, first.Bytecode, second.Bytecode)
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.Equal(t, 1, c.Len())

	// Another group size is another kernel.
	_, err = c.Load(context.Background(), scaleKernel(), kernel.GroupSize{X: 64, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fc.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCache_Embedded(t *testing.T) {
	fc := &fakeCompiler{}
	c, err := NewCache(fc, 4)
	require.NoError(t, err)

	desc := scaleKernel()
	desc.Embedded = &kernel.EmbeddedBytecode{GroupSize: group8, Bytecode: []byte("precompiled")}

	s, err := c.Load(context.Background(), desc, group8)
	require.NoError(t, err)
	assert.Equal(t, Embedded, s.Variant)
	assert.Equal(t, "precompiled", string(s.Bytecode))
	assert.Zero(t, fc.calls.Load())
	assert.Zero(t, c.Len())

	// A different group size cannot use the embedded blob.
	s, err = c.Load(context.Background(), desc, kernel.GroupSize{X: 16, Y: 16, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, Dynamic, s.Variant)
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestCache_ConcurrentMissesShareCompile(t *testing.T) {
	fc := &fakeCompiler{gate: make(chan struct{})}
	c, err := NewCache(fc, 4)
	require.NoError(t, err)

	var g errgroup.Group
	results := make([][]byte, 8)
	for i := range results {
		g.Go(func() error {
			s, err := c.Load(context.Background(), scaleKernel(), group8)
			results[i] = s.Bytecode
			return err
		})
	}

	// Let every goroutine reach the flight before the compile finishes.
	require.Eventually(t, func() bool { return fc.calls.Load() == 1 }, testTimeout, testTick)
	close(fc.gate)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), fc.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestCache_ErrorsNotCached(t *testing.T) {
	boom := &dxc.CompilationError{Message: "error: bad."}
	fc := &fakeCompiler{err: boom}
	c, err := NewCache(fc, 4)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), scaleKernel(), group8)
	var cerr *dxc.CompilationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "kernel scale")

	fc.err = nil
	_, err = c.Load(context.Background(), scaleKernel(), group8)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestCache_InvalidInput(t *testing.T) {
	fc := &fakeCompiler{}
	c, err := NewCache(fc, 4)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), scaleKernel(), kernel.GroupSize{X: 0, Y: 1, Z: 1})
	assert.ErrorIs(t, err, &kernel.Error{Kind: kernel.ErrInvalidGroupSize})

	bad := scaleKernel()
	bad.Name = "not valid"
	_, err = c.Load(context.Background(), bad, group8)
	assert.ErrorIs(t, err, &kernel.Error{Kind: kernel.ErrInvalidName})
	assert.Zero(t, fc.calls.Load())
}

func TestCache_Bind(t *testing.T) {
	c, err := NewCache(&fakeCompiler{}, 4)
	require.NoError(t, err)

	var dyn Loader
	require.NoError(t, c.Bind(context.Background(), &dyn, scaleKernel(), group8))
	assert.Equal(t, Dynamic, dyn.GetCachedShader().Variant)

	desc := scaleKernel()
	desc.Embedded = &kernel.EmbeddedBytecode{GroupSize: group8, Bytecode: []byte{1}}
	var emb Loader
	require.NoError(t, c.Bind(context.Background(), &emb, desc, group8))
	assert.Equal(t, Embedded, emb.GetCachedShader().Variant)

	assert.Panics(t, func() { _ = c.Bind(context.Background(), &emb, desc, group8) })
}

func TestCache_Purge(t *testing.T) {
	fc := &fakeCompiler{}
	c, err := NewCache(fc, 4)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), scaleKernel(), group8)
	require.NoError(t, err)
	c.Purge()
	assert.Zero(t, c.Len())

	_, err = c.Load(context.Background(), scaleKernel(), group8)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestCache_InvalidateEditedKernel(t *testing.T) {
	fc := &fakeCompiler{}
	c, err := NewCache(fc, 8)
	require.NoError(t, err)

	other := scaleKernel()
	other.Name = "other"
	for _, gs := range []kernel.GroupSize{group8, {X: 64, Y: 1, Z: 1}} {
		_, err = c.Load(context.Background(), scaleKernel(), gs)
		require.NoError(t, err)
	}
	_, err = c.Load(context.Background(), other, group8)
	require.NoError(t, err)

	edited := scaleKernel()
	edited.Entry = "{\n    output[ThreadIds.x] = input[ThreadIds.x] + amount * 2;\n}"
	before, err := c.Load(context.Background(), edited, group8)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fc.calls.Load(), "same name and group size hits the cache")

	assert.Equal(t, 2, c.Invalidate("scale"))
	assert.Equal(t, 1, c.Len())

	after, err := c.Load(context.Background(), edited, group8)
	require.NoError(t, err)
	assert.Equal(t, int32(4), fc.calls.Load())
	assert.NotEqual(t, before.Bytecode, after.Bytecode)
	assert.Zero(t, c.Invalidate("missing"))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "scale@8,8,1", Key{Kernel: "scale", GroupSize: group8}.String())
}
