// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gogpu/dxkernel/internal/logger"
)

// loadState tracks the process-wide native library state.
type loadState uint8

const (
	stateUnloaded loadState = iota
	stateLoading
	stateLoaded
	stateFailed
)

func (s loadState) String() string {
	switch s {
	case stateUnloaded:
		return "unloaded"
	case stateLoading:
		return "loading"
	case stateLoaded:
		return "loaded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// nativeLibrary is a loaded shared library.
type nativeLibrary interface {
	Close() error
}

// libraryLoader extracts and loads the native libraries exactly once.
// Callers that arrive while a load is in progress wait on mu.
type libraryLoader struct {
	loaded atomic.Bool

	mu    sync.Mutex
	state loadState
	err   error
	dir   string
	libs  map[string]nativeLibrary

	open func(path string) (nativeLibrary, error)
	arch string
}

// process is the loader shared by every Compiler in the process.
var process = newLibraryLoader(openLibrary, runtime.GOARCH)

func newLibraryLoader(open func(string) (nativeLibrary, error), goarch string) *libraryLoader {
	return &libraryLoader{open: open, arch: goarch}
}

// archTag maps GOARCH to the directory name used in Options.Libraries.
func archTag(goarch string) (string, error) {
	switch goarch {
	case "amd64":
		return "x64", nil
	case "arm64":
		return "arm64", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goarch)
	}
}

// ensure loads the libraries on first call and returns the sticky result on
// every later call.
func (l *libraryLoader) ensure(opts *Options) error {
	if l.loaded.Load() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateLoaded:
		return nil
	case stateFailed:
		return l.err
	}

	l.state = stateLoading
	if err := l.load(opts); err != nil {
		l.state = stateFailed
		l.err = err
		logger.Get().Error("dxc: native compiler unavailable", "err", err)
		return err
	}
	l.state = stateLoaded
	l.loaded.Store(true)
	return nil
}

// library returns a loaded library by file name. It must only be called
// after ensure succeeded.
func (l *libraryLoader) library(name string) nativeLibrary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.libs[name]
}

func (l *libraryLoader) load(opts *Options) error {
	arch, err := archTag(l.arch)
	if err != nil {
		return &LoadError{File: libraryNames[len(libraryNames)-1], Err: err}
	}

	dir := opts.LibraryDir
	if dir == "" {
		if opts.Libraries == nil {
			return &LoadError{File: libraryNames[0], Err: fmt.Errorf("no library source configured: %w", fs.ErrNotExist)}
		}
		dir, err = extract(opts.Libraries, arch, opts.TempDir)
		if err != nil {
			return err
		}
		logger.Get().Info("dxc: extracted native libraries", "dir", dir, "arch", arch)
	}

	libs := make(map[string]nativeLibrary, len(libraryNames))
	// dxil first so that dxcompiler finds it already loaded.
	for _, name := range libraryNames {
		lib, err := l.open(filepath.Join(dir, name))
		if err != nil {
			for _, loaded := range libs {
				_ = loaded.Close()
			}
			return &LoadError{File: name, Code: errorCode(err), Err: err}
		}
		libs[name] = lib
	}

	l.dir = dir
	l.libs = libs
	logger.Get().Info("dxc: loaded native libraries", "dir", dir)
	return nil
}

// extract copies <arch>/<name> for every library into a new private
// directory under parent.
func extract(src fs.FS, arch, parent string) (string, error) {
	dir, err := os.MkdirTemp(parent, "dxkernel-")
	if err != nil {
		return "", &LoadError{File: libraryNames[0], Code: errorCode(err), Err: err}
	}

	for _, name := range libraryNames {
		if err := copyFile(src, path.Join(arch, name), filepath.Join(dir, name)); err != nil {
			_ = os.RemoveAll(dir)
			return "", &LoadError{File: name, Code: errorCode(err), Err: err}
		}
	}
	return dir, nil
}

func copyFile(src fs.FS, name, dst string) error {
	in, err := src.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o700)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func errorCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
