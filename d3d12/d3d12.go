// Package d3d12 declares the parts of the Direct3D 12 device and command list
// that the kernel core records against.
//
// The core never creates a device. The application supplies one through the
// Device interface, typically a thin wrapper over ID3D12Device and
// ID3D12GraphicsCommandList.
package d3d12

// CPUDescriptorHandle mirrors D3D12_CPU_DESCRIPTOR_HANDLE.
type CPUDescriptorHandle uintptr

// Offset returns the handle n descriptors after h.
func (h CPUDescriptorHandle) Offset(n, increment uint32) CPUDescriptorHandle {
	return h + CPUDescriptorHandle(uintptr(n)*uintptr(increment))
}

// GPUDescriptorHandle mirrors D3D12_GPU_DESCRIPTOR_HANDLE.
type GPUDescriptorHandle uint64

// Offset returns the handle n descriptors after h.
func (h GPUDescriptorHandle) Offset(n, increment uint32) GPUDescriptorHandle {
	return h + GPUDescriptorHandle(uint64(n)*uint64(increment))
}

// DescriptorPair is the CPU and GPU handle of one shader-visible descriptor.
type DescriptorPair struct {
	CPU CPUDescriptorHandle
	GPU GPUDescriptorHandle
}

// DescriptorRangeType mirrors D3D12_DESCRIPTOR_RANGE_TYPE.
type DescriptorRangeType uint8

// Descriptor range types, in D3D12 order.
const (
	DescriptorRangeSRV DescriptorRangeType = iota
	DescriptorRangeUAV
	DescriptorRangeCBV
)

// String returns the view kind, e.g. "UAV".
func (t DescriptorRangeType) String() string {
	switch t {
	case DescriptorRangeSRV:
		return "SRV"
	case DescriptorRangeUAV:
		return "UAV"
	case DescriptorRangeCBV:
		return "CBV"
	default:
		return "DescriptorRangeType(?)"
	}
}

// RootTable is a root descriptor table holding one descriptor of Type bound
// to shader register Register in Space.
type RootTable struct {
	Type     DescriptorRangeType
	Register uint32
	Space    uint32
}

// RootSignature describes the root parameters of a kernel pipeline.
// Parameter 0 holds Constants 32-bit inline constants at register b0, space
// 0. Parameter i+1 is Tables[i].
type RootSignature struct {
	Constants uint32
	Tables    []RootTable
}

// Parameters returns the number of root parameters.
func (s RootSignature) Parameters() uint32 {
	return 1 + uint32(len(s.Tables))
}

// CommandAllocator is the backing memory of recorded command lists.
type CommandAllocator interface {
	// Reset reclaims the memory of every list recorded with the allocator.
	// The GPU must have finished executing those lists.
	Reset() error

	Release()
}

// PipelineState is a compiled compute pipeline.
type PipelineState interface {
	Release()
}

// CommandList records compute work.
type CommandList interface {
	SetPipelineState(pso PipelineState)

	// SetComputeRoot32BitConstants writes values into the inline constants
	// of a root parameter, starting at destOffset 32-bit values in.
	SetComputeRoot32BitConstants(rootIndex uint32, values []uint32, destOffset uint32)

	SetComputeRootDescriptorTable(rootIndex uint32, base GPUDescriptorHandle)

	Dispatch(x, y, z uint32)

	// Close ends recording.
	Close() error
}

// Device is the application's D3D12 device.
type Device interface {
	// === Descriptors ===

	// DescriptorHeapStart returns the first handle pair of the shader-visible
	// CBV/SRV/UAV heap reserved for kernel dispatches.
	DescriptorHeapStart() DescriptorPair

	// DescriptorIncrement returns the CBV/SRV/UAV handle increment size.
	DescriptorIncrement() uint32

	// === Commands ===

	CreateCommandAllocator() (CommandAllocator, error)

	// CreateCommandList returns a compute list recording into alloc with
	// pso already set.
	CreateCommandList(alloc CommandAllocator, pso PipelineState) (CommandList, error)

	// === Pipelines ===

	// CreateComputePipeline builds a pipeline from DXIL bytecode with a root
	// signature serialized from root.
	CreateComputePipeline(bytecode []byte, root RootSignature) (PipelineState, error)
}
