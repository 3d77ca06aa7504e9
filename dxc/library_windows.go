// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build windows

package dxc

import "golang.org/x/sys/windows"

// libraryNames lists the native libraries in load order.
var libraryNames = []string{"dxil.dll", "dxcompiler.dll"}

// compilerLibrary exports DxcCreateInstance.
const compilerLibrary = "dxcompiler.dll"

type dllLibrary struct {
	dll *windows.DLL
}

func (l *dllLibrary) Close() error {
	return l.dll.Release()
}

func openLibrary(path string) (nativeLibrary, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, err
	}
	return &dllLibrary{dll: dll}, nil
}
