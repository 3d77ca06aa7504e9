// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxc

// backend creates native compiler instances. newInstance is called on the
// OS thread that will own the instance.
type backend interface {
	newInstance() (instance, error)
}

// instance is one native compiler. It must only be used from the thread
// that created it.
type instance interface {
	// compile runs the compiler. A non-nil error means the native call
	// itself failed; a rejected program is reported through result.
	compile(source []byte, args []string) (result, error)

	release()
}

// result is the outcome of one native compile call. Native buffers have
// already been copied and released.
type result struct {
	ok          bool
	bytecode    []byte
	diagnostics string
}
