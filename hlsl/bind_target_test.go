// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"testing"

	"github.com/gogpu/dxkernel/kernel"
)

func TestRegisterType_String(t *testing.T) {
	tests := []struct {
		rt   RegisterType
		want string
	}{
		{RegisterTypeB, "b"},
		{RegisterTypeT, "t"},
		{RegisterTypeS, "s"},
		{RegisterTypeU, "u"},
		{RegisterType(255), "b"},
	}

	for _, tt := range tests {
		if got := tt.rt.String(); got != tt.want {
			t.Errorf("RegisterType(%d).String() = %q, want %q", tt.rt, got, tt.want)
		}
	}
}

func TestBindTarget_String(t *testing.T) {
	tests := []struct {
		bt   BindTarget
		want string
	}{
		{BindTarget{Type: RegisterTypeT, Register: 0}, "t0"},
		{BindTarget{Type: RegisterTypeU, Register: 3}, "u3"},
		{BindTarget{Type: RegisterTypeB, Register: 1, Space: 2}, "b1, space2"},
	}

	for _, tt := range tests {
		if got := tt.bt.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestBindTargetFor(t *testing.T) {
	tests := []struct {
		class kernel.ResourceClass
		index uint32
		want  string
	}{
		{kernel.Constant, 0, "b1"},
		{kernel.Constant, 2, "b3"},
		{kernel.ReadOnly, 0, "t0"},
		{kernel.ReadOnly, 5, "t5"},
		{kernel.ReadWrite, 0, "u0"},
		{kernel.ReadWrite, 7, "u7"},
	}

	for _, tt := range tests {
		got := BindTargetFor(kernel.Resource{Name: "r", Class: tt.class, Index: tt.index}).String()
		if got != tt.want {
			t.Errorf("BindTargetFor(%s, %d) = %q, want %q", tt.class, tt.index, got, tt.want)
		}
	}
}
