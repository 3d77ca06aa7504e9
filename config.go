package dxkernel

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/dxkernel/dxc"
	"github.com/gogpu/dxkernel/hlsl"
	"github.com/gogpu/dxkernel/shader"
)

// Config configures an Engine.
//
// A config file is TOML:
//
//	shader_model = "6.2"
//	threads = 4
//	cache_size = 512
//	library_dir = "C:/dxc/bin/x64"
type Config struct {
	// ShaderModel selects the cs_6_x profile.
	ShaderModel hlsl.ShaderModel `toml:"shader_model"`

	// Threads is the number of compiler threads. Zero means one per CPU.
	Threads int `toml:"threads"`

	// CacheSize is the number of compiled kernels kept in memory.
	CacheSize int `toml:"cache_size"`

	// LibraryDir loads dxil and dxcompiler from disk instead of extracting
	// them from the embedded libraries.
	LibraryDir string `toml:"library_dir"`

	// TempDir is where embedded libraries are extracted. Empty means the
	// system temporary directory.
	TempDir string `toml:"temp_dir"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		ShaderModel: hlsl.ShaderModel6_0,
		Threads:     runtime.NumCPU(),
		CacheSize:   shader.DefaultCacheSize,
	}
}

// LoadConfig reads a TOML config file. Keys missing from the file keep
// their DefaultConfig values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("dxkernel: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("dxkernel: config %s: %w", path, err)
	}
	if cfg.Threads < 0 {
		return cfg, fmt.Errorf("dxkernel: config %s: threads must not be negative", path)
	}
	return cfg, nil
}

// CompilerOptions converts c to dxc options.
func (c Config) CompilerOptions(libs fs.FS) dxc.Options {
	return dxc.Options{
		ShaderModel: c.ShaderModel,
		Threads:     c.Threads,
		Libraries:   libs,
		LibraryDir:  c.LibraryDir,
		TempDir:     c.TempDir,
	}
}
