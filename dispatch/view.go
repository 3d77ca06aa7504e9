package dispatch

import (
	"sync/atomic"

	"github.com/gogpu/dxkernel/d3d12"
	"github.com/gogpu/dxkernel/pool"
)

// View is one descriptor rented for a resource view. The view itself is
// written by the caller, usually with ID3D12Device::CreateShaderResourceView
// or CreateUnorderedAccessView on the CPU handle.
type View struct {
	pair     d3d12.DescriptorPair
	owner    *pool.DescriptorAllocator
	released atomic.Bool
}

// NewView rents a descriptor from a and calls write with its CPU handle.
func NewView(a *pool.DescriptorAllocator, write func(d3d12.CPUDescriptorHandle)) *View {
	v := &View{pair: a.Rent(), owner: a}
	if write != nil {
		write(v.pair.CPU)
	}
	return v
}

// CPU returns the handle the view was written to.
func (v *View) CPU() d3d12.CPUDescriptorHandle {
	return v.pair.CPU
}

// Table returns the GPU handle to bind as a one-entry descriptor table.
func (v *View) Table() d3d12.GPUDescriptorHandle {
	return v.pair.GPU
}

// Release returns the descriptor to its allocator. It is idempotent.
func (v *View) Release() {
	if v.released.Swap(true) {
		return
	}
	v.owner.Return(v.pair)
}
