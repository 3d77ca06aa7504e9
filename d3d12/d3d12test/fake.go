// Package d3d12test provides an in-memory d3d12.Device that records every
// command, for tests of code that dispatches kernels.
package d3d12test

import (
	"fmt"
	"sync"

	"github.com/gogpu/dxkernel/d3d12"
)

// Heap bases and increment used by Device.
const (
	CPUBase   d3d12.CPUDescriptorHandle = 0x10000
	GPUBase   d3d12.GPUDescriptorHandle = 0x7f0000000000
	Increment uint32                    = 32
)

// Op names a recorded command.
type Op string

const (
	OpSetPipeline  Op = "SetPipelineState"
	OpConstants    Op = "SetComputeRoot32BitConstants"
	OpTable        Op = "SetComputeRootDescriptorTable"
	OpDispatch     Op = "Dispatch"
	OpCloseCommand Op = "Close"
)

// Command is one recorded call.
type Command struct {
	Op         Op
	RootIndex  uint32
	DestOffset uint32
	Values     []uint32
	Table      d3d12.GPUDescriptorHandle
	Groups     [3]uint32
}

// Allocator is a fake command allocator.
type Allocator struct {
	ID int

	mu       sync.Mutex
	resets   int
	released int
}

// Reset implements d3d12.CommandAllocator.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released > 0 {
		return fmt.Errorf("allocator %d reset after release", a.ID)
	}
	a.resets++
	return nil
}

// Release implements d3d12.CommandAllocator.
func (a *Allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released++
}

// Resets returns how many times Reset was called.
func (a *Allocator) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// Released returns how many times Release was called.
func (a *Allocator) Released() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Pipeline is a fake pipeline state.
type Pipeline struct {
	Bytecode []byte
	Root     d3d12.RootSignature

	mu       sync.Mutex
	released int
}

// Release implements d3d12.PipelineState.
func (p *Pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
}

// Released returns how many times Release was called.
func (p *Pipeline) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// CommandList records commands in call order.
type CommandList struct {
	Allocator *Allocator
	Pipeline  *Pipeline
	Commands  []Command
	Closed    bool
}

// SetPipelineState implements d3d12.CommandList.
func (l *CommandList) SetPipelineState(pso d3d12.PipelineState) {
	l.Pipeline, _ = pso.(*Pipeline)
	l.Commands = append(l.Commands, Command{Op: OpSetPipeline})
}

// SetComputeRoot32BitConstants implements d3d12.CommandList.
func (l *CommandList) SetComputeRoot32BitConstants(rootIndex uint32, values []uint32, destOffset uint32) {
	l.Commands = append(l.Commands, Command{
		Op:         OpConstants,
		RootIndex:  rootIndex,
		DestOffset: destOffset,
		Values:     append([]uint32(nil), values...),
	})
}

// SetComputeRootDescriptorTable implements d3d12.CommandList.
func (l *CommandList) SetComputeRootDescriptorTable(rootIndex uint32, base d3d12.GPUDescriptorHandle) {
	l.Commands = append(l.Commands, Command{Op: OpTable, RootIndex: rootIndex, Table: base})
}

// Dispatch implements d3d12.CommandList.
func (l *CommandList) Dispatch(x, y, z uint32) {
	l.Commands = append(l.Commands, Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}})
}

// Close implements d3d12.CommandList.
func (l *CommandList) Close() error {
	if l.Closed {
		return fmt.Errorf("command list closed twice")
	}
	l.Closed = true
	l.Commands = append(l.Commands, Command{Op: OpCloseCommand})
	return nil
}

// Filter returns the recorded commands with the given op.
func (l *CommandList) Filter(op Op) []Command {
	var out []Command
	for _, c := range l.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Device is a fake d3d12.Device. The zero value is ready to use.
type Device struct {
	// FailAllocator makes CreateCommandAllocator fail.
	FailAllocator error

	// FailPipeline makes CreateComputePipeline fail.
	FailPipeline error

	mu         sync.Mutex
	allocators []*Allocator
	pipelines  []*Pipeline
	lists      []*CommandList
}

// DescriptorHeapStart implements d3d12.Device.
func (d *Device) DescriptorHeapStart() d3d12.DescriptorPair {
	return d3d12.DescriptorPair{CPU: CPUBase, GPU: GPUBase}
}

// DescriptorIncrement implements d3d12.Device.
func (d *Device) DescriptorIncrement() uint32 {
	return Increment
}

// CreateCommandAllocator implements d3d12.Device.
func (d *Device) CreateCommandAllocator() (d3d12.CommandAllocator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailAllocator != nil {
		return nil, d.FailAllocator
	}
	a := &Allocator{ID: len(d.allocators)}
	d.allocators = append(d.allocators, a)
	return a, nil
}

// CreateCommandList implements d3d12.Device.
func (d *Device) CreateCommandList(alloc d3d12.CommandAllocator, pso d3d12.PipelineState) (d3d12.CommandList, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, _ := alloc.(*Allocator)
	p, _ := pso.(*Pipeline)
	l := &CommandList{Allocator: a, Pipeline: p}
	d.lists = append(d.lists, l)
	return l, nil
}

// CreateComputePipeline implements d3d12.Device.
func (d *Device) CreateComputePipeline(bytecode []byte, root d3d12.RootSignature) (d3d12.PipelineState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPipeline != nil {
		return nil, d.FailPipeline
	}
	root.Tables = append([]d3d12.RootTable(nil), root.Tables...)
	p := &Pipeline{Bytecode: bytecode, Root: root}
	d.pipelines = append(d.pipelines, p)
	return p, nil
}

// Allocators returns every allocator created so far.
func (d *Device) Allocators() []*Allocator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Allocator(nil), d.allocators...)
}

// Pipelines returns every pipeline created so far.
func (d *Device) Pipelines() []*Pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Pipeline(nil), d.pipelines...)
}

// Lists returns every command list created so far.
func (d *Device) Lists() []*CommandList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*CommandList(nil), d.lists...)
}
