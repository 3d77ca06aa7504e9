// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build !windows

package dxc

func newNativeBackend(*libraryLoader) (backend, error) {
	return nil, ErrUnsupportedPlatform
}
