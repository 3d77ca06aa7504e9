// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import "fmt"

// ErrorKind categorizes HLSL rendering errors.
type ErrorKind uint8

const (
	// ErrReservedName indicates a captured identifier that HLSL reserves.
	ErrReservedName ErrorKind = iota

	// ErrInvalidShaderModel indicates an invalid or unsupported shader model.
	ErrInvalidShaderModel
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrReservedName:
		return "ReservedName"
	case ErrInvalidShaderModel:
		return "InvalidShaderModel"
	default:
		return "Unknown"
	}
}

// Error represents an HLSL rendering error.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Message provides details about the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("hlsl %s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError creates a new HLSL error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
