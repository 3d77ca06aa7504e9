package d3d12

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleOffset(t *testing.T) {
	cpu := CPUDescriptorHandle(0x1000)
	gpu := GPUDescriptorHandle(0x7f0000000000)

	assert.Equal(t, cpu, cpu.Offset(0, 32))
	assert.Equal(t, CPUDescriptorHandle(0x1000+5*32), cpu.Offset(5, 32))
	assert.Equal(t, GPUDescriptorHandle(0x7f0000000000+4095*64), gpu.Offset(4095, 64))
}

func TestRootSignature(t *testing.T) {
	assert.Equal(t, uint32(1), RootSignature{Constants: 3}.Parameters())

	s := RootSignature{Constants: 4, Tables: []RootTable{
		{Type: DescriptorRangeUAV, Register: 0, Space: 1},
		{Type: DescriptorRangeSRV, Register: 0},
	}}
	assert.Equal(t, uint32(3), s.Parameters())
	assert.Equal(t, "UAV", s.Tables[0].Type.String())
	assert.Equal(t, "CBV", DescriptorRangeCBV.String())
}
