// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package dxc drives the DirectX Shader Compiler to turn rendered HLSL into
// DXIL bytecode.
//
// The native compiler and its support library are not thread-safe. A
// Compiler therefore runs a fixed set of worker goroutines, each locked to
// its own OS thread and each owning one native compiler instance created on
// first use. The instance is released when the worker exits, and the locked
// thread exits with it.
//
// The native libraries (dxil and dxcompiler) are extracted from
// Options.Libraries into a private temporary directory and loaded once per
// process. A load failure is permanent for the process.
//
// # Usage
//
//	c := dxc.New(dxc.DefaultOptions())
//	defer c.Close()
//
//	bytecode, err := c.Compile(ctx, source)
//	var cerr *dxc.CompilationError
//	if errors.As(err, &cerr) {
//	    fmt.Println(cerr.Message)
//	}
//
// Compilation always uses maximum optimization, row-major matrix packing
// and warnings as errors.
package dxc
