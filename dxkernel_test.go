package dxkernel

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/d3d12/d3d12test"
	"github.com/gogpu/dxkernel/dispatch"
	"github.com/gogpu/dxkernel/dxc"
	"github.com/gogpu/dxkernel/hlsl"
	"github.com/gogpu/dxkernel/kernel"
	"github.com/gogpu/dxkernel/shader"
)

type fakeCompiler struct {
	calls  int
	source string
	err    error
}

func (f *fakeCompiler) Compile(_ context.Context, source string) ([]byte, error) {
	f.calls++
	f.source = source
	if f.err != nil {
		return nil, f.err
	}
	return []byte("DXIL" + source[:8]), nil
}

func loadScale(t *testing.T) *kernel.Description {
	t.Helper()
	desc, err := kernel.LoadFile(filepath.Join("hlsl", "testdata", "in", "scale.yaml"))
	require.NoError(t, err)
	return desc
}

var group8 = kernel.GroupSize{X: 8, Y: 8, Z: 1}

func TestRender(t *testing.T) {
	desc := loadScale(t)

	source, err := Render(desc, group8)
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("hlsl", "testdata", "golden", "scale.hlsl"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), source)

	_, err = Render(desc, kernel.GroupSize{X: 2048, Y: 1, Z: 1})
	assert.ErrorIs(t, err, &kernel.Error{Kind: kernel.ErrInvalidGroupSize})

	reserved := loadScale(t)
	reserved.Fields[0].Name = "float4"
	_, err = Render(reserved, group8)
	assert.ErrorIs(t, err, &hlsl.Error{Kind: hlsl.ErrReservedName})

	desc.Name = "1bad"
	_, err = Render(desc, group8)
	assert.ErrorIs(t, err, &kernel.Error{Kind: kernel.ErrInvalidName})
}

func TestCompile(t *testing.T) {
	fc := &fakeCompiler{}
	bc, err := Compile(context.Background(), fc, loadScale(t), group8)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bc, []byte("DXIL")))
	assert.Contains(t, fc.source, "[numthreads(8, 8, 1)]")

	fc.err = &dxc.CompilationError{Message: "error: nope."}
	_, err = Compile(context.Background(), fc, loadScale(t), group8)
	assert.True(t, IsCompilationError(err))
	assert.Contains(t, err.Error(), "kernel Scale")

	assert.False(t, IsCompilationError(dxc.ErrCancelled))
}

func TestEngine_CachesAndDispatches(t *testing.T) {
	fc := &fakeCompiler{}
	e, err := newEngine(fc, nil, 4)
	require.NoError(t, err)
	defer e.Close()

	desc := loadScale(t)
	first, err := e.Compile(context.Background(), desc, group8)
	require.NoError(t, err)
	second, err := e.Compile(context.Background(), desc, group8)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, 1, e.Shaders().Len())

	device := &d3d12test.Device{}
	dev, err := e.Attach(device)
	require.NoError(t, err)
	defer dev.Close()

	in := dev.NewView(nil)
	out := dev.NewView(nil)
	defer in.Release()
	defer out.Release()

	sub, err := dev.Runner.Dispatch(context.Background(), dev.NewSite(desc, group8), dispatch.Size{X: 8, Y: 8, Z: 1}, dispatch.Arguments{
		Values:    map[string]any{"amount": float32(3)},
		Resources: []d3d12.GPUDescriptorHandle{in.Table(), out.Table()},
	})
	require.NoError(t, err)
	defer sub.Release()

	tables := sub.List.(*d3d12test.CommandList).Filter(d3d12test.OpTable)
	require.Len(t, tables, 2)
	assert.Equal(t, uint32(1), tables[0].RootIndex)
	assert.Equal(t, in.Table(), tables[0].Table)
	assert.Equal(t, uint32(2), tables[1].RootIndex)
	assert.Equal(t, out.Table(), tables[1].Table)
	assert.Equal(t, 1, fc.calls, "dispatch reuses the cached bytecode")
}

func TestEngine_InvalidateRecompilesEditedKernel(t *testing.T) {
	fc := &fakeCompiler{}
	e, err := newEngine(fc, nil, 4)
	require.NoError(t, err)
	defer e.Close()

	desc := loadScale(t)
	_, err = e.Compile(context.Background(), desc, group8)
	require.NoError(t, err)

	desc.Entry = strings.Replace(desc.Entry, "* amount", "- amount", 1)
	e.Invalidate(desc.Name)
	_, err = e.Compile(context.Background(), desc, group8)
	require.NoError(t, err)

	assert.Equal(t, 2, fc.calls)
	assert.Contains(t, fc.source, "input[ThreadIds.x] - amount")
	assert.Equal(t, 1, e.Shaders().Len())
}

func TestNewEngine_NativeUnavailable(t *testing.T) {
	if dxcAvailable() {
		t.Skip("native compiler present")
	}
	e, err := NewEngine(Config{Threads: 1, LibraryDir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Compile(context.Background(), loadScale(t), group8)
	var lerr *dxc.LoadError
	assert.ErrorAs(t, err, &lerr)
	assert.False(t, IsCompilationError(err))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, hlsl.ShaderModel6_0, cfg.ShaderModel)
	assert.Positive(t, cfg.Threads)
	assert.Equal(t, shader.DefaultCacheSize, cfg.CacheSize)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dxkernel.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
shader_model = "6.2"
threads = 3
library_dir = "/opt/dxc"
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, hlsl.ShaderModel6_2, cfg.ShaderModel)
	assert.Equal(t, 3, cfg.Threads)
	assert.Equal(t, "/opt/dxc", cfg.LibraryDir)
	assert.Equal(t, shader.DefaultCacheSize, cfg.CacheSize, "missing keys keep defaults")

	opts := cfg.CompilerOptions(nil)
	assert.Equal(t, hlsl.ShaderModel6_2, opts.ShaderModel)
	assert.Equal(t, 3, opts.Threads)
	assert.Equal(t, "/opt/dxc", opts.LibraryDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err = LoadConfig(write("unknown.toml", "threads = 1\nturbo = true\n"))
	assert.Error(t, err)

	_, err = LoadConfig(write("model.toml", `shader_model = "5.1"`))
	assert.Error(t, err)

	_, err = LoadConfig(write("negative.toml", "threads = -2\n"))
	assert.ErrorContains(t, err, "threads must not be negative")
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	e, err := newEngine(&fakeCompiler{}, nil, 4)
	require.NoError(t, err)
	_, err = e.Compile(context.Background(), loadScale(t), group8)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "shader: cache miss")
	assert.Same(t, Logger(), Logger())

	SetLogger(nil)
	buf.Reset()
	_, err = e.Compile(context.Background(), loadScale(t), kernel.GroupSize{X: 4, Y: 4, Z: 1})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

// dxcAvailable reports whether the test run provides real native libraries.
func dxcAvailable() bool {
	return os.Getenv("DXKERNEL_NATIVE") == "1"
}
