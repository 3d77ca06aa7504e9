// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxc

import (
	"io/fs"
	"runtime"

	"github.com/gogpu/dxkernel/hlsl"
)

// sourceName is the file name the compiler sees for in-memory sources.
const sourceName = "hlsl.hlsl"

// Options configures a Compiler.
type Options struct {
	// ShaderModel selects the compute target profile.
	ShaderModel hlsl.ShaderModel

	// Threads is the number of compiler threads, each with its own native
	// instance. Zero means runtime.NumCPU().
	Threads int

	// Libraries holds the native libraries as <arch>/<file>, where arch is
	// "x64" or "arm64". It is typically an embed.FS.
	Libraries fs.FS

	// LibraryDir loads the libraries from a directory on disk instead of
	// extracting them from Libraries.
	LibraryDir string

	// TempDir is the parent of the extraction directory. Empty means
	// os.TempDir().
	TempDir string
}

// DefaultOptions returns options targeting Shader Model 6.0 with one
// compiler thread per CPU.
func DefaultOptions() Options {
	return Options{
		ShaderModel: hlsl.ShaderModel6_0,
		Threads:     runtime.NumCPU(),
	}
}

func (o *Options) threads() int {
	if o.Threads <= 0 {
		return runtime.NumCPU()
	}
	return o.Threads
}

// arguments returns the fixed compiler command line. Row-major packing keeps
// the constant layout in step with kernel.Layout.
func (o *Options) arguments() []string {
	return []string{
		sourceName,
		"-E", hlsl.EntryPointName,
		"-T", o.ShaderModel.ComputeProfile(),
		"-O3",
		"-Zpr",
		"-WX",
	}
}
