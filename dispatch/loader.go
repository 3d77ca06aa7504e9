// Package dispatch records a compiled kernel and its captured state into a
// command list.
//
// Captured state travels on two channels. Captured values are packed into
// root parameter 0 as 32-bit inline constants: the dispatch size first, the
// captured fields after it. Captured resources are bound as one descriptor
// table each, in kernel.Description.SortedResources order, starting at
// ResourceOffset(kind). The hlsl renderer declares registers in the same
// order, so the two sides must change together. RootSignature describes that
// shared layout to the device.
package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/hlsl"
	"github.com/gogpu/dxkernel/kernel"
)

// Root parameter slots.
const (
	// ConstantsSlot holds the inline constants.
	ConstantsSlot = 0

	// OutputTargetSlot holds the implicit output target of a side-effecting
	// kernel. It is bound by the caller, not from captured resources.
	OutputTargetSlot = 1
)

// dispatchSizeDWords is the number of inline constants before the captured
// fields.
const dispatchSizeDWords = 3

// ResourceOffset returns the root parameter of the first captured resource.
func ResourceOffset(kind kernel.Kind) uint32 {
	if kind == kernel.SideEffecting {
		return OutputTargetSlot + 1
	}
	return ConstantsSlot + 1
}

// RootParameters returns the number of root parameters a kernel needs.
func RootParameters(desc *kernel.Description) uint32 {
	return ResourceOffset(desc.Kind) + uint32(len(desc.Resources))
}

// RootSignature returns the root signature matching the registers the hlsl
// renderer declares for desc. constants is the inline constant count, see
// kernel.Layout.DWords. Table i is the register of the descriptor table that
// DataLoader binds at root parameter i+1.
func RootSignature(desc *kernel.Description, constants uint32) d3d12.RootSignature {
	sorted := desc.SortedResources()
	tables := make([]d3d12.RootTable, 0, len(sorted)+1)
	if desc.Kind == kernel.SideEffecting {
		tables = append(tables, rootTable(hlsl.OutputTarget))
	}
	for _, r := range sorted {
		tables = append(tables, rootTable(hlsl.BindTargetFor(r)))
	}
	return d3d12.RootSignature{Constants: constants, Tables: tables}
}

func rootTable(bt hlsl.BindTarget) d3d12.RootTable {
	t := d3d12.RootTable{Register: bt.Register, Space: uint32(bt.Space)}
	switch bt.Type {
	case hlsl.RegisterTypeB:
		t.Type = d3d12.DescriptorRangeCBV
	case hlsl.RegisterTypeT:
		t.Type = d3d12.DescriptorRangeSRV
	default:
		t.Type = d3d12.DescriptorRangeUAV
	}
	return t
}

// DataLoader writes captured state into one command list.
type DataLoader struct {
	list      d3d12.CommandList
	kind      kernel.Kind
	resources uint32
}

// NewDataLoader returns a loader for a kernel of the given kind.
func NewDataLoader(list d3d12.CommandList, kind kernel.Kind) *DataLoader {
	return &DataLoader{list: list, kind: kind}
}

// LoadDispatchSize writes the total thread counts read by the kernel's
// bounds check.
func (l *DataLoader) LoadDispatchSize(x, y, z uint32) {
	l.list.SetComputeRoot32BitConstants(ConstantsSlot, []uint32{x, y, z}, 0)
}

// LoadConstants writes the packed captured fields after the dispatch size.
// It panics if len(data) is not a multiple of four.
func (l *DataLoader) LoadConstants(data []byte) {
	if len(data)%4 != 0 {
		panic(fmt.Sprintf("dispatch: constant payload of %d bytes is not a multiple of 4", len(data)))
	}
	if len(data) == 0 {
		return
	}
	values := make([]uint32, len(data)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	l.list.SetComputeRoot32BitConstants(ConstantsSlot, values, dispatchSizeDWords)
}

// LoadResource binds the next captured resource.
func (l *DataLoader) LoadResource(table d3d12.GPUDescriptorHandle) {
	l.list.SetComputeRootDescriptorTable(ResourceOffset(l.kind)+l.resources, table)
	l.resources++
}

// LoadOutputTarget binds the implicit output target. It panics for
// value-producing kernels, which have no output slot.
func (l *DataLoader) LoadOutputTarget(table d3d12.GPUDescriptorHandle) {
	if l.kind != kernel.SideEffecting {
		panic("dispatch: output target bound for a value-producing kernel")
	}
	l.list.SetComputeRootDescriptorTable(OutputTargetSlot, table)
}

// Resources returns the number of resources loaded so far.
func (l *DataLoader) Resources() int {
	return int(l.resources)
}
