// Package shader decides, per dispatch call site, whether a kernel runs from
// precompiled embedded bytecode or from bytecode compiled at run time, and
// caches the latter.
package shader

import (
	"fmt"
	"sync/atomic"
)

// Variant tells where the bytecode of a CompiledShader came from.
type Variant uint8

const (
	// Embedded bytecode was compiled ahead of time and shipped with the
	// kernel.
	Embedded Variant = iota

	// Dynamic bytecode was rendered and compiled at run time.
	Dynamic
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case Embedded:
		return "embedded"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// CompiledShader is the bytecode bound to a call site.
type CompiledShader struct {
	Variant  Variant
	Bytecode []byte
}

// Loader holds the bytecode of one call site. It is set exactly once. It is
// safe for concurrent use.
type Loader struct {
	shader atomic.Pointer[CompiledShader]
}

// LoadEmbeddedBytecode sets the loader to embedded bytecode. It panics if
// the loader is already set.
func (l *Loader) LoadEmbeddedBytecode(bytecode []byte) {
	l.set(&CompiledShader{Variant: Embedded, Bytecode: bytecode})
}

// LoadDynamicBytecode sets the loader to run-time compiled bytecode. It
// panics if the loader is already set.
func (l *Loader) LoadDynamicBytecode(bytecode []byte) {
	l.set(&CompiledShader{Variant: Dynamic, Bytecode: bytecode})
}

func (l *Loader) set(s *CompiledShader) {
	if !l.shader.CompareAndSwap(nil, s) {
		panic("shader: loader already initialized")
	}
}

// GetCachedShader returns the loaded bytecode. It panics if nothing has been
// loaded yet.
func (l *Loader) GetCachedShader() CompiledShader {
	s := l.shader.Load()
	if s == nil {
		panic("shader: loader not initialized")
	}
	return *s
}

// Loaded reports whether the loader has been set.
func (l *Loader) Loaded() bool {
	return l.shader.Load() != nil
}
