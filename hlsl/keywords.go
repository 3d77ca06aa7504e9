// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/dxkernel/kernel"
)

// reservedKeywords contains HLSL keywords and object type names that cannot
// be used as identifiers. Scalar, vector and matrix shorthands are in
// typeShorthands.
var reservedKeywords = map[string]struct{}{
	// Statements and declarations
	"break": {}, "case": {}, "cbuffer": {}, "class": {}, "const": {},
	"continue": {}, "default": {}, "discard": {}, "do": {}, "else": {},
	"export": {}, "extern": {}, "false": {}, "for": {}, "groupshared": {},
	"if": {}, "in": {}, "inline": {}, "inout": {}, "interface": {},
	"namespace": {}, "out": {}, "packoffset": {}, "register": {},
	"return": {}, "sizeof": {}, "static": {}, "struct": {}, "switch": {},
	"tbuffer": {}, "template": {}, "true": {}, "typedef": {}, "uniform": {},
	"void": {}, "volatile": {}, "while": {},

	// Qualifiers
	"centroid": {}, "column_major": {}, "globallycoherent": {},
	"linear": {}, "nointerpolation": {}, "noperspective": {},
	"precise": {}, "row_major": {}, "sample": {}, "shared": {},
	"snorm": {}, "unorm": {},

	// Resource objects
	"AppendStructuredBuffer": {}, "Buffer": {}, "ByteAddressBuffer": {},
	"ConstantBuffer": {}, "ConsumeStructuredBuffer": {},
	"RWBuffer": {}, "RWByteAddressBuffer": {}, "RWStructuredBuffer": {},
	"RWTexture1D": {}, "RWTexture1DArray": {}, "RWTexture2D": {},
	"RWTexture2DArray": {}, "RWTexture3D": {}, "SamplerState": {},
	"SamplerComparisonState": {}, "StructuredBuffer": {}, "Texture1D": {},
	"Texture1DArray": {}, "Texture2D": {}, "Texture2DArray": {},
	"Texture2DMS": {}, "Texture2DMSArray": {}, "Texture3D": {},
	"TextureCube": {}, "TextureCubeArray": {},

	// Other built-in types
	"matrix": {}, "string": {}, "vector": {}, "sampler": {}, "texture": {},
}

// caseInsensitiveKeywords are legacy effect keywords matched without case.
var caseInsensitiveKeywords = map[string]struct{}{
	"asm":         {},
	"decl":        {},
	"pass":        {},
	"technique":   {},
	"texture1d":   {},
	"texture2d":   {},
	"texture3d":   {},
	"texturecube": {},
}

// typeShorthands contains every scalar, vector and matrix type name.
var typeShorthands = func() map[string]struct{} {
	result := make(map[string]struct{})

	bases := []string{
		"bool", "int", "uint", "dword", "half", "float", "double",
		"min10float", "min16float", "min12int", "min16int", "min16uint",
		"int16_t", "int32_t", "int64_t", "uint16_t", "uint32_t", "uint64_t",
		"float16_t", "float32_t", "float64_t",
	}
	for _, base := range bases {
		result[base] = struct{}{}
		for r := 1; r <= 4; r++ {
			result[fmt.Sprintf("%s%d", base, r)] = struct{}{}
			for c := 1; c <= 4; c++ {
				result[fmt.Sprintf("%s%dx%d", base, r, c)] = struct{}{}
			}
		}
	}
	return result
}()

// IsReserved reports whether name is an HLSL keyword or built-in type name.
func IsReserved(name string) bool {
	if _, ok := reservedKeywords[name]; ok {
		return true
	}
	if _, ok := typeShorthands[name]; ok {
		return true
	}
	_, ok := caseInsensitiveKeywords[strings.ToLower(name)]
	return ok
}

// CheckNames reports the first captured identifier in desc that HLSL
// reserves. Captured names are emitted verbatim, so a reserved one would
// otherwise only fail inside the native compiler.
func CheckNames(desc *kernel.Description) error {
	check := func(what, name string) error {
		if IsReserved(name) {
			return NewError(ErrReservedName, fmt.Sprintf("%s name %q is reserved in HLSL", what, name))
		}
		return nil
	}

	for _, f := range desc.Fields {
		if err := check("field", f.Name); err != nil {
			return err
		}
	}
	for _, r := range desc.Resources {
		if err := check("resource", r.Name); err != nil {
			return err
		}
	}
	for _, b := range desc.SharedBuffers {
		if err := check("groupshared buffer", b.Name); err != nil {
			return err
		}
	}
	for _, s := range desc.Statics {
		if err := check("static field", s.Name); err != nil {
			return err
		}
	}
	for _, t := range desc.Types {
		if err := check("type", t.Name); err != nil {
			return err
		}
	}
	for _, d := range desc.Defines {
		if err := check("define", d.Name); err != nil {
			return err
		}
	}
	return nil
}
