// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build windows

package dxc

import (
	"bytes"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	clsidDxcCompiler = windows.GUID{Data1: 0x73e22d93, Data2: 0xe6ce, Data3: 0x47f3,
		Data4: [8]byte{0xb5, 0xbf, 0xf0, 0x66, 0x4f, 0x39, 0xc1, 0xb0}}
	iidIDxcCompiler3 = windows.GUID{Data1: 0x228b4687, Data2: 0x5a6a, Data3: 0x4730,
		Data4: [8]byte{0x90, 0x0c, 0x97, 0x02, 0xb2, 0x20, 0x3f, 0x54}}
	iidIDxcResult = windows.GUID{Data1: 0x58346cda, Data2: 0xdde7, Data3: 0x4497,
		Data4: [8]byte{0x94, 0x61, 0x6f, 0x87, 0xaf, 0x5e, 0x06, 0x59}}
)

// COM vtable slots.
const (
	unknownRelease = 2

	compiler3Compile = 3

	operationResultGetStatus      = 3
	operationResultGetResult      = 4
	operationResultGetErrorBuffer = 5

	blobGetBufferPointer = 3
	blobGetBufferSize    = 4
	blobGetEncoding      = 5
)

// dxcBuffer mirrors DxcBuffer.
type dxcBuffer struct {
	ptr      uintptr
	size     uintptr
	encoding uint32
}

type hresult int32

func (hr hresult) failed() bool { return hr < 0 }

func (hr hresult) Error() string {
	return fmt.Sprintf("HRESULT 0x%08X", uint32(hr))
}

// method returns the function pointer in vtable slot i of a COM object.
func method(obj uintptr, i int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(i)*unsafe.Sizeof(uintptr(0))))
}

func comRelease(obj uintptr) {
	if obj == 0 {
		return
	}
	fn := method(obj, unknownRelease)
	_, _, _ = syscall.SyscallN(fn, obj)
}

type dxcBackend struct {
	create *windows.Proc
}

func newNativeBackend(l *libraryLoader) (backend, error) {
	lib, ok := l.library(compilerLibrary).(*dllLibrary)
	if !ok {
		return nil, &LoadError{File: compilerLibrary, Err: ErrUnsupportedPlatform}
	}
	proc, err := lib.dll.FindProc("DxcCreateInstance")
	if err != nil {
		return nil, &LoadError{File: compilerLibrary, Code: errorCode(err), Err: err}
	}
	return &dxcBackend{create: proc}, nil
}

func (b *dxcBackend) newInstance() (instance, error) {
	var ptr uintptr
	r, _, _ := b.create.Call(
		uintptr(unsafe.Pointer(&clsidDxcCompiler)),
		uintptr(unsafe.Pointer(&iidIDxcCompiler3)),
		uintptr(unsafe.Pointer(&ptr)),
	)
	if hr := hresult(r); hr.failed() {
		return nil, fmt.Errorf("DxcCreateInstance: %w", hr)
	}
	return &comCompiler{ptr: ptr}, nil
}

// comCompiler wraps an IDxcCompiler3.
type comCompiler struct {
	ptr uintptr
}

func (c *comCompiler) release() {
	comRelease(c.ptr)
	c.ptr = 0
}

func (c *comCompiler) compile(source []byte, args []string) (result, error) {
	wargs := make([]*uint16, len(args))
	for i, a := range args {
		p, err := windows.UTF16PtrFromString(a)
		if err != nil {
			return result{}, err
		}
		wargs[i] = p
	}

	buf := &dxcBuffer{
		ptr:      uintptr(unsafe.Pointer(unsafe.SliceData(source))),
		size:     uintptr(len(source)),
		encoding: codePageUTF8,
	}

	var res uintptr
	fn := method(c.ptr, compiler3Compile)
	r, _, _ := syscall.SyscallN(fn, c.ptr,
		uintptr(unsafe.Pointer(buf)),
		uintptr(unsafe.Pointer(unsafe.SliceData(wargs))),
		uintptr(len(wargs)),
		0,
		uintptr(unsafe.Pointer(&iidIDxcResult)),
		uintptr(unsafe.Pointer(&res)),
	)
	runtime.KeepAlive(source)
	runtime.KeepAlive(wargs)
	runtime.KeepAlive(buf)
	if hr := hresult(r); hr.failed() {
		return result{}, fmt.Errorf("IDxcCompiler3::Compile: %w", hr)
	}
	defer comRelease(res)

	var status int32
	fn = method(res, operationResultGetStatus)
	r, _, _ = syscall.SyscallN(fn, res, uintptr(unsafe.Pointer(&status)))
	if hr := hresult(r); hr.failed() {
		return result{}, fmt.Errorf("IDxcResult::GetStatus: %w", hr)
	}

	if hresult(status).failed() {
		return result{diagnostics: errorBuffer(res)}, nil
	}

	var blob uintptr
	fn = method(res, operationResultGetResult)
	r, _, _ = syscall.SyscallN(fn, res, uintptr(unsafe.Pointer(&blob)))
	if hr := hresult(r); hr.failed() || blob == 0 {
		return result{ok: true}, nil
	}
	defer comRelease(blob)

	return result{ok: true, bytecode: blobBytes(blob)}, nil
}

// errorBuffer returns the decoded diagnostics of a failed result.
func errorBuffer(res uintptr) string {
	var blob uintptr
	fn := method(res, operationResultGetErrorBuffer)
	r, _, _ := syscall.SyscallN(fn, res, uintptr(unsafe.Pointer(&blob)))
	if hresult(r).failed() || blob == 0 {
		return ""
	}
	defer comRelease(blob)

	var known int32
	var codePage uint32
	fn = method(blob, blobGetEncoding)
	r, _, _ = syscall.SyscallN(fn, blob, uintptr(unsafe.Pointer(&known)), uintptr(unsafe.Pointer(&codePage)))
	if hresult(r).failed() || known == 0 {
		codePage = codePageUTF8
	}
	return decodeDiagnostics(blobBytes(blob), codePage)
}

// blobBytes copies the contents of an IDxcBlob.
func blobBytes(blob uintptr) []byte {
	fn := method(blob, blobGetBufferPointer)
	ptr, _, _ := syscall.SyscallN(fn, blob)
	fn = method(blob, blobGetBufferSize)
	size, _, _ := syscall.SyscallN(fn, blob)
	if ptr == 0 || size == 0 {
		return nil
	}
	return bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
}
