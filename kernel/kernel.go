// Package kernel defines the captured description of a GPU kernel.
//
// A Description is produced by an external capture stage (the code that reads
// the host-language kernel method) and consumed by the hlsl renderer, the
// shader cache and the dispatch layer. All three rely on the same ordering of
// captured fields and resources, so a Description must not be mutated after
// it has been handed to any of them.
package kernel

import (
	"cmp"
	"fmt"
	"slices"
)

// Kind distinguishes kernels that produce a value per thread from kernels
// that only write through their captured resources.
type Kind uint8

const (
	// ValueProducing kernels compute a value per invocation.
	ValueProducing Kind = iota

	// SideEffecting kernels write to an implicit output target in addition to
	// their captured resources. The target occupies its own root slot.
	SideEffecting
)

// String returns the kind name used in description files.
func (k Kind) String() string {
	switch k {
	case ValueProducing:
		return "value"
	case SideEffecting:
		return "side-effect"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "value":
		*k = ValueProducing
	case "side-effect":
		*k = SideEffecting
	default:
		return NewError(ErrInvalidKind, fmt.Sprintf("unknown kernel kind %q", text))
	}
	return nil
}

// ResourceClass classifies a bound resource by how the kernel accesses it.
// The declaration order of the constants is the binding order.
type ResourceClass uint8

const (
	// Constant resources are bound as constant buffers.
	Constant ResourceClass = iota

	// ReadOnly resources are bound as shader resource views.
	ReadOnly

	// ReadWrite resources are bound as unordered access views.
	ReadWrite
)

// String returns the class name used in description files.
func (c ResourceClass) String() string {
	switch c {
	case Constant:
		return "constant"
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	default:
		return fmt.Sprintf("ResourceClass(%d)", uint8(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ResourceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ResourceClass) UnmarshalText(text []byte) error {
	switch string(text) {
	case "constant":
		*c = Constant
	case "readonly":
		*c = ReadOnly
	case "readwrite":
		*c = ReadWrite
	default:
		return NewError(ErrInvalidClass, fmt.Sprintf("unknown resource class %q", text))
	}
	return nil
}

// Field is a captured value passed to the kernel as an inline constant.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Resource is a captured GPU resource bound through a descriptor table.
//
// For ReadOnly and ReadWrite resources Type is the full HLSL object type
// (for example "StructuredBuffer<float4>" or "RWTexture2D<float>"). For
// Constant resources Type is the element type of the constant buffer.
type Resource struct {
	Name  string        `yaml:"name"`
	Type  string        `yaml:"type"`
	Class ResourceClass `yaml:"class"`
	Index uint32        `yaml:"index"`
}

// SharedBuffer is a groupshared array. A nil Count means one element per
// thread in the group.
type SharedBuffer struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"`
	Count *uint32 `yaml:"count,omitempty"`
}

// Define is a preprocessor definition emitted verbatim.
type Define struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// StaticField is a static global. An empty Initializer means the field is
// declared without one.
type StaticField struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Initializer string `yaml:"init,omitempty"`
}

// TypeDecl is a custom type declaration with its full body text.
type TypeDecl struct {
	Name string `yaml:"name"`
	Body string `yaml:"body"`
}

// Method is a helper function called from the entry point.
type Method struct {
	Signature string `yaml:"signature"`
	Body      string `yaml:"body"`
}

// EmbeddedBytecode is bytecode compiled ahead of time for one group size.
type EmbeddedBytecode struct {
	GroupSize GroupSize
	Bytecode  []byte
}

// Description is the captured form of a kernel.
type Description struct {
	// Name identifies the kernel. Together with the group size it keys the
	// shader cache.
	Name string `yaml:"name"`

	Kind Kind `yaml:"kind"`

	Fields        []Field        `yaml:"fields,omitempty"`
	Resources     []Resource     `yaml:"resources,omitempty"`
	SharedBuffers []SharedBuffer `yaml:"shared,omitempty"`
	Defines       []Define       `yaml:"defines,omitempty"`
	Statics       []StaticField  `yaml:"statics,omitempty"`

	// Types must be listed so that every type precedes its first use.
	Types []TypeDecl `yaml:"types,omitempty"`

	// Declarations are forward-declared method signatures.
	Declarations []string `yaml:"declarations,omitempty"`
	Methods      []Method `yaml:"methods,omitempty"`

	// Entry is the entry point body, braces included.
	Entry string `yaml:"entry"`

	// Output is the HLSL object type of the implicit output target of a
	// side-effecting kernel. Empty means DefaultOutputType.
	Output string `yaml:"output,omitempty"`

	// Embedded is optional precompiled bytecode.
	Embedded *EmbeddedBytecode `yaml:"-"`
}

// DefaultOutputType is the output target type of a side-effecting kernel
// that does not name one.
const DefaultOutputType = "RWTexture2D<float4>"

// OutputType returns the declared type of the implicit output target.
func (d *Description) OutputType() string {
	if d.Output == "" {
		return DefaultOutputType
	}
	return d.Output
}

// SortedResources returns the resources in class-then-index order. This is
// the order of both the rendered register declarations and the descriptor
// tables written at dispatch time.
func (d *Description) SortedResources() []Resource {
	out := slices.Clone(d.Resources)
	slices.SortStableFunc(out, func(a, b Resource) int {
		if c := cmp.Compare(a.Class, b.Class); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

// CountResources returns how many resources of class c are bound.
func (d *Description) CountResources(c ResourceClass) int {
	n := 0
	for i := range d.Resources {
		if d.Resources[i].Class == c {
			n++
		}
	}
	return n
}
