package kernel

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxRootDWords is the D3D12 root signature budget shared by inline
// constants and descriptor tables (one DWORD per table).
const MaxRootDWords = 64

// rowSize is the size of one constant buffer register.
const rowSize = 16

var typePattern = regexp.MustCompile(`^(bool|int|uint|dword|float|half|double|int64_t|uint64_t)(?:([1-4])(?:x([1-4]))?)?$`)

var scalarSizes = map[string]uint32{
	"bool":     4,
	"int":      4,
	"uint":     4,
	"dword":    4,
	"float":    4,
	"half":     4,
	"double":   8,
	"int64_t":  8,
	"uint64_t": 8,
}

// Slot is one packed value in the implicit constant block.
type Slot struct {
	Name   string
	Type   string
	Offset uint32
	Size   uint32

	// Rows and Cols give the shape; scalars are 1x1 and vectors 1xN.
	// Stride is the distance in bytes between matrix rows.
	Rows, Cols uint32
	Stride     uint32
}

// Scalar returns the size in bytes of one element.
func (s Slot) Scalar() uint32 {
	return (s.Size - (s.Rows-1)*s.Stride) / s.Cols
}

// ConstantLayout is the packing of the implicit constant block: the three
// dispatch-size values followed by every captured field in description order.
type ConstantLayout struct {
	Slots []Slot

	// Size is the payload length in bytes, a multiple of four.
	Size uint32
}

// DWords returns the payload length in 32-bit values.
func (l *ConstantLayout) DWords() uint32 {
	return l.Size / 4
}

// Find returns the slot for a captured field.
func (l *ConstantLayout) Find(name string) (Slot, bool) {
	for _, s := range l.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// typeInfo describes the cbuffer packing of an HLSL numeric type.
type typeInfo struct {
	scalar    uint32
	rows      uint32
	cols      uint32
	rowStride uint32
}

func (t typeInfo) size() uint32 {
	return (t.rows-1)*t.rowStride + t.cols*t.scalar
}

func parseType(name string) (typeInfo, bool) {
	m := typePattern.FindStringSubmatch(name)
	if m == nil {
		return typeInfo{}, false
	}
	t := typeInfo{scalar: scalarSizes[m[1]], rows: 1, cols: 1}
	switch {
	case m[3] != "":
		r, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])
		t.rows, t.cols = uint32(r), uint32(c)
	case m[2] != "":
		c, _ := strconv.Atoi(m[2])
		t.cols = uint32(c)
	}
	t.rowStride = alignUp(t.cols*t.scalar, rowSize)
	return t, true
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

// place returns the offset of a value of type t appended at offset.
// Matrices and values larger than a register start on a register boundary;
// smaller values never straddle one.
func place(offset uint32, t typeInfo) uint32 {
	offset = alignUp(offset, t.scalar)
	size := t.size()
	if t.rows > 1 || size > rowSize {
		return alignUp(offset, rowSize)
	}
	if offset/rowSize != (offset+size-1)/rowSize {
		return alignUp(offset, rowSize)
	}
	return offset
}

// Layout computes the packing of the implicit constant block of d using the
// HLSL constant buffer rules with row-major matrices.
func Layout(d *Description) (*ConstantLayout, error) {
	l := &ConstantLayout{Slots: make([]Slot, 0, 3+len(d.Fields))}
	for i, name := range []string{"__x", "__y", "__z"} {
		l.Slots = append(l.Slots, Slot{Name: name, Type: "uint", Offset: uint32(i) * 4, Size: 4, Rows: 1, Cols: 1, Stride: rowSize})
	}

	offset := uint32(12)
	for _, f := range d.Fields {
		t, ok := parseType(f.Type)
		if !ok {
			return nil, NewError(ErrUnknownType, fmt.Sprintf("field %s has type %q with no constant packing", f.Name, f.Type))
		}
		at := place(offset, t)
		l.Slots = append(l.Slots, Slot{
			Name: f.Name, Type: f.Type, Offset: at, Size: t.size(),
			Rows: t.rows, Cols: t.cols, Stride: t.rowStride,
		})
		offset = at + t.size()
	}
	l.Size = alignUp(offset, 4)

	budget := l.DWords() + uint32(len(d.Resources))
	if d.Kind == SideEffecting {
		budget++
	}
	if budget > MaxRootDWords {
		return nil, NewError(ErrTooManyConstants,
			fmt.Sprintf("kernel %s needs %d root DWORDs, limit is %d", d.Name, budget, MaxRootDWords))
	}
	return l, nil
}
