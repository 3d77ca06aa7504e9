// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package hlsl renders a captured kernel description as HLSL compute shader
// source.
//
// Rendering is a pure function of the thread-group size and the
// description: the same inputs always produce byte-identical text, which the
// shader cache relies on.
//
// # Usage
//
//	program := hlsl.Render(kernel.GroupSize{X: 8, Y: 8, Z: 1}, desc)
//	defer program.Release()
//	bytecode, err := compiler.Compile(ctx, program.String())
//
// # Layout
//
// The generated source declares, in order: the group size defines, the
// description defines, static fields, custom types, the implicit constant
// block, the bound resources, groupshared buffers, forward declarations,
// methods, and finally the entry point.
//
// # Register Binding
//
// Registers are assigned per class from each resource's index:
//
//	cbuffer _       : register(b0)   // dispatch size and captured values
//	cbuffer _name   : register(b#)   // constant resource, index + 1
//	Type name       : register(t#)   // read-only resource, index
//	RWType name     : register(u#)   // read-write resource, index
//
// The dispatch package binds descriptor tables in the same class-then-index
// order, so the two must stay in step.
//
// # Names
//
// Captured names are emitted verbatim. CheckNames rejects names that HLSL
// reserves, such as float4 or groupshared, before they reach the compiler.
package hlsl
