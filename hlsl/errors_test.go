// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrReservedName, "ReservedName"},
		{ErrInvalidShaderModel, "InvalidShaderModel"},
		{ErrorKind(200), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestError(t *testing.T) {
	err := NewError(ErrReservedName, `field name "half" is reserved in HLSL`)
	if got, want := err.Error(), `hlsl ReservedName: field name "half" is reserved in HLSL`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := fmt.Errorf("kernel Scale: %w", err)
	if !errors.Is(wrapped, &Error{Kind: ErrReservedName}) {
		t.Error("wrapped error does not match its kind")
	}
	if errors.Is(wrapped, &Error{Kind: ErrInvalidShaderModel}) {
		t.Error("wrapped error matches another kind")
	}
}

func TestShaderModel_UnmarshalTextKind(t *testing.T) {
	var sm ShaderModel
	for _, text := range []string{"abc", "5.1", "6.9"} {
		err := sm.UnmarshalText([]byte(text))
		if !errors.Is(err, &Error{Kind: ErrInvalidShaderModel}) {
			t.Errorf("UnmarshalText(%q) = %v, want InvalidShaderModel", text, err)
		}
	}
}
