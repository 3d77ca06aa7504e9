// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"bytes"
	"sync"

	"github.com/gogpu/dxkernel/kernel"
)

// EntryPointName is the name of the generated compute entry point.
const EntryPointName = "Execute"

// maxPooledBuffer bounds the capacity of buffers kept for reuse.
const maxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Program is rendered HLSL source held in a pooled buffer. It is owned by
// the caller of Render until Release is called.
type Program struct {
	buf *bytes.Buffer
}

// String returns the source text. It returns "" after Release.
func (p *Program) String() string {
	if p.buf == nil {
		return ""
	}
	return p.buf.String()
}

// Bytes returns the source text. The slice aliases the pooled buffer and is
// invalid after Release.
func (p *Program) Bytes() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

// Len returns the length of the source in bytes.
func (p *Program) Len() int {
	if p.buf == nil {
		return 0
	}
	return p.buf.Len()
}

// Release returns the buffer to the pool. Release is idempotent.
func (p *Program) Release() {
	if p.buf == nil {
		return
	}
	if p.buf.Cap() <= maxPooledBuffer {
		p.buf.Reset()
		bufferPool.Put(p.buf)
	}
	p.buf = nil
}

// Render generates the HLSL source for desc compiled with the given
// thread-group size. It never fails; malformed descriptions produce
// malformed source that the compiler will reject.
func Render(groupSize kernel.GroupSize, desc *kernel.Description) *Program {
	buf := bufferPool.Get().(*bytes.Buffer)
	w := newWriter(buf, groupSize, desc)
	w.writeProgram()
	return &Program{buf: buf}
}
