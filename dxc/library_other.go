// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build !windows

package dxc

// libraryNames lists the native libraries in load order.
var libraryNames = []string{"libdxil.so", "libdxcompiler.so"}

func openLibrary(string) (nativeLibrary, error) {
	return nil, ErrUnsupportedPlatform
}
