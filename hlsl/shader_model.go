// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"
)

// ShaderModel represents a DirectX Shader Model version.
// Only DXIL models are listed; DXC does not emit DXBC.
type ShaderModel uint8

// Supported Shader Model versions.
const (
	// ShaderModel6_0 introduces wave intrinsics and DXIL (default).
	ShaderModel6_0 ShaderModel = iota

	// ShaderModel6_1 adds SV_ViewID and barycentrics.
	ShaderModel6_1

	// ShaderModel6_2 adds float16 and denorm control.
	ShaderModel6_2

	// ShaderModel6_3 adds DirectX Raytracing (DXR).
	ShaderModel6_3

	// ShaderModel6_4 adds variable rate shading and library subobjects.
	ShaderModel6_4

	// ShaderModel6_5 adds mesh shaders and sampler feedback.
	ShaderModel6_5

	// ShaderModel6_6 adds 64-bit atomics and dynamic resources.
	ShaderModel6_6

	// ShaderModel6_7 adds advanced texture ops and work graphs.
	ShaderModel6_7
)

// String returns a human-readable representation of the shader model.
// Example: "SM 6.0"
func (sm ShaderModel) String() string {
	return fmt.Sprintf("SM %d.%d", sm.Major(), sm.Minor())
}

// ProfileSuffix returns the shader profile suffix for this model.
// Example: "6_0"
func (sm ShaderModel) ProfileSuffix() string {
	return fmt.Sprintf("%d_%d", sm.Major(), sm.Minor())
}

// ComputeProfile returns the compute target profile passed to the compiler.
// Example: "cs_6_0"
func (sm ShaderModel) ComputeProfile() string {
	return "cs_" + sm.ProfileSuffix()
}

// Major returns the major version number.
func (sm ShaderModel) Major() uint8 {
	return 6
}

// Minor returns the minor version number. Unknown models report 0.
func (sm ShaderModel) Minor() uint8 {
	if sm > ShaderModel6_7 {
		return 0
	}
	return uint8(sm)
}

// MarshalText implements encoding.TextMarshaler using the "6.0" form.
func (sm ShaderModel) MarshalText() ([]byte, error) {
	return fmt.Appendf(nil, "%d.%d", sm.Major(), sm.Minor()), nil
}

// UnmarshalText accepts "6.2", "6_2" and "cs_6_2".
func (sm *ShaderModel) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "cs_")
	s = strings.ReplaceAll(s, "_", ".")

	var major, minor int
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return NewError(ErrInvalidShaderModel, fmt.Sprintf("invalid shader model %q", text))
	}
	if major != 6 || minor < 0 || minor > int(ShaderModel6_7) {
		return NewError(ErrInvalidShaderModel, fmt.Sprintf("unsupported shader model %q", text))
	}
	*sm = ShaderModel(minor)
	return nil
}
