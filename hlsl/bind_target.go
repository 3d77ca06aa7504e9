// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"

	"github.com/gogpu/dxkernel/kernel"
)

// ImplicitConstantRegister is the constant buffer register holding the
// dispatch size and the captured values.
const ImplicitConstantRegister = 0

// OutputTargetName is the declared name of the implicit output target of a
// side-effecting kernel.
const OutputTargetName = "__output"

// OutputTarget is the register of the implicit output target. It lives in
// space 1 so captured read-write resources keep u0 onwards.
var OutputTarget = BindTarget{Type: RegisterTypeU, Register: 0, Space: 1}

// BindTarget specifies the HLSL register binding for a resource.
// HLSL uses register(x#, space#) syntax for resource binding.
type BindTarget struct {
	// Type is the register class.
	Type RegisterType

	// Register is the register index within the class.
	Register uint32

	// Space is the register space. Captured resources use space 0.
	Space uint8
}

// String returns the register operand, e.g. "t0" or "u1, space1".
func (bt BindTarget) String() string {
	if bt.Space == 0 {
		return fmt.Sprintf("%s%d", bt.Type, bt.Register)
	}
	return fmt.Sprintf("%s%d, space%d", bt.Type, bt.Register, bt.Space)
}

// RegisterType represents the HLSL register type.
type RegisterType uint8

const (
	// RegisterTypeB is for constant buffers (cbuffer).
	RegisterTypeB RegisterType = iota

	// RegisterTypeT is for textures and shader resource views.
	RegisterTypeT

	// RegisterTypeS is for samplers.
	RegisterTypeS

	// RegisterTypeU is for unordered access views (UAV).
	RegisterTypeU
)

// String returns the single-character register prefix.
func (rt RegisterType) String() string {
	switch rt {
	case RegisterTypeB:
		return "b"
	case RegisterTypeT:
		return "t"
	case RegisterTypeS:
		return "s"
	case RegisterTypeU:
		return "u"
	default:
		return "b"
	}
}

// BindTargetFor returns the register a resource is declared at.
// Constant resources are shifted by one because b0 holds the implicit
// constant block.
func BindTargetFor(r kernel.Resource) BindTarget {
	switch r.Class {
	case kernel.Constant:
		return BindTarget{Type: RegisterTypeB, Register: r.Index + 1}
	case kernel.ReadOnly:
		return BindTarget{Type: RegisterTypeT, Register: r.Index}
	default:
		return BindTarget{Type: RegisterTypeU, Register: r.Index}
	}
}
