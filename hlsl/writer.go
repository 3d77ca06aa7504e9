// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gogpu/dxkernel/kernel"
)

// header is written at the top of every program.
var header = []string{
	"// ================================================",
	"//                  AUTO GENERATED",
	"// ================================================",
	"// This shader was created by dxkernel.",
	"// See: https://github.com/gogpu/dxkernel.",
}

// Names of the implicit declarations.
const (
	groupSizeX = "__GroupSize__get_X"
	groupSizeY = "__GroupSize__get_Y"
	groupSizeZ = "__GroupSize__get_Z"

	dispatchX = "__x"
	dispatchY = "__y"
	dispatchZ = "__z"

	threadIDs = "ThreadIds"
)

// Writer generates HLSL source code from a kernel description.
type Writer struct {
	desc      *kernel.Description
	groupSize kernel.GroupSize

	// Output buffer
	out *bytes.Buffer

	// Current indentation level
	indent int
}

func newWriter(out *bytes.Buffer, groupSize kernel.GroupSize, desc *kernel.Description) *Writer {
	return &Writer{
		desc:      desc,
		groupSize: groupSize,
		out:       out,
	}
}

// String returns the generated source.
func (w *Writer) String() string {
	return w.out.String()
}

// writeProgram emits every section. Declarations must precede their use,
// so the order is fixed.
func (w *Writer) writeProgram() {
	w.writeHeader()
	w.writeGroupSizeDefines()
	w.writeDefines()
	w.writeStatics()
	w.writeTypes()
	w.writeConstantBlock()
	w.writeResources()
	w.writeSharedBuffers()
	w.writeMethods()
	w.writeEntryPoint()
}

func (w *Writer) writeHeader() {
	for _, line := range header {
		w.writeLine(line)
	}
}

func (w *Writer) writeGroupSizeDefines() {
	w.writeLine("")
	w.writeLinef("#define %s %d", groupSizeX, w.groupSize.X)
	w.writeLinef("#define %s %d", groupSizeY, w.groupSize.Y)
	w.writeLinef("#define %s %d", groupSizeZ, w.groupSize.Z)
}

func (w *Writer) writeDefines() {
	if len(w.desc.Defines) == 0 {
		return
	}
	w.writeLine("")
	for _, d := range w.desc.Defines {
		w.writeLinef("#define %s %s", d.Name, d.Value)
	}
}

func (w *Writer) writeStatics() {
	if len(w.desc.Statics) == 0 {
		return
	}
	w.writeLine("")
	for _, s := range w.desc.Statics {
		if s.Initializer == "" {
			w.writeLinef("static %s %s;", s.Type, s.Name)
		} else {
			w.writeLinef("static %s %s = %s;", s.Type, s.Name, s.Initializer)
		}
	}
}

// writeTypes emits custom types in the order supplied. The caller is
// responsible for ordering dependencies first.
func (w *Writer) writeTypes() {
	for _, t := range w.desc.Types {
		w.writeLine("")
		w.writeText(t.Body)
	}
}

// writeConstantBlock emits the implicit cbuffer at b0: the dispatch size
// followed by every captured field, matching kernel.Layout.
func (w *Writer) writeConstantBlock() {
	members := make([]cbufferMember, 0, 3+len(w.desc.Fields))
	for _, name := range []string{dispatchX, dispatchY, dispatchZ} {
		members = append(members, cbufferMember{name: name, typeName: "uint"})
	}
	for _, f := range w.desc.Fields {
		members = append(members, cbufferMember{name: f.Name, typeName: f.Type})
	}

	w.writeLine("")
	w.writeConstantBuffer("_", members, BindTarget{Type: RegisterTypeB, Register: ImplicitConstantRegister})
}

// writeResources emits the output target of a side-effecting kernel, then
// the captured resources in class-then-index order.
func (w *Writer) writeResources() {
	if w.desc.Kind == kernel.SideEffecting {
		w.writeLine("")
		w.writeLinef("%s %s : register(%s);", w.desc.OutputType(), OutputTargetName, OutputTarget)
	}
	for _, r := range w.desc.SortedResources() {
		w.writeLine("")
		target := BindTargetFor(r)
		switch r.Class {
		case kernel.Constant:
			w.writeConstantBuffer("_"+r.Name,
				[]cbufferMember{{name: r.Name + "[1]", typeName: r.Type}}, target)
		default:
			w.writeLinef("%s %s : register(%s);", r.Type, r.Name, target)
		}
	}
}

// writeSharedBuffers emits groupshared arrays. A missing count is one
// element per thread in the group.
func (w *Writer) writeSharedBuffers() {
	if len(w.desc.SharedBuffers) == 0 {
		return
	}
	w.writeLine("")
	for _, b := range w.desc.SharedBuffers {
		count := w.groupSize.Volume()
		if b.Count != nil {
			count = *b.Count
		}
		w.writeLinef("groupshared %s %s[%d];", b.Type, b.Name, count)
	}
}

func (w *Writer) writeMethods() {
	if len(w.desc.Declarations) > 0 {
		w.writeLine("")
		for _, decl := range w.desc.Declarations {
			w.writeLinef("%s;", strings.TrimSuffix(decl, ";"))
		}
	}
	for _, m := range w.desc.Methods {
		w.writeLine("")
		w.writeLine(m.Signature)
		w.writeText(m.Body)
	}
}

func (w *Writer) writeEntryPoint() {
	w.writeLine("")
	w.writeLinef("[numthreads(%d, %d, %d)]", w.groupSize.X, w.groupSize.Y, w.groupSize.Z)
	w.writeLinef("void %s(uint3 %s : SV_DispatchThreadID)", EntryPointName, threadIDs)
	if strings.TrimSpace(w.desc.Entry) == "" {
		w.writeLine("{")
		w.writeLine("}")
		return
	}
	w.writeText(w.desc.Entry)
}

// cbufferMember represents a member in a constant buffer.
type cbufferMember struct {
	name     string
	typeName string
}

// writeConstantBuffer writes a cbuffer declaration.
//
// HLSL syntax:
//
//	cbuffer Name : register(b0)
//	{
//	    float4 color;
//	}
func (w *Writer) writeConstantBuffer(name string, members []cbufferMember, binding BindTarget) {
	w.writeLinef("cbuffer %s : register(%s)", name, binding)
	w.writeLine("{")
	w.pushIndent()
	for i := range members {
		member := &members[i]
		w.writeLinef("%s %s;", member.typeName, member.name)
	}
	w.popIndent()
	w.writeLine("}")
}

// writeText writes captured text verbatim, ensuring it ends a line.
func (w *Writer) writeText(text string) {
	w.out.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		w.out.WriteByte('\n')
	}
}

// writeLine writes an indented line verbatim.
func (w *Writer) writeLine(line string) {
	w.writeIndent()
	w.out.WriteString(line)
	w.out.WriteByte('\n')
}

// writeLinef writes an indented formatted line.
func (w *Writer) writeLinef(format string, args ...any) {
	w.writeIndent()
	fmt.Fprintf(w.out, format, args...)
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
