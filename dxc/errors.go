// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dxc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrCancelled is returned when the context is done before or after the
	// native compiler call. The returned error also wraps the context cause.
	ErrCancelled = errors.New("dxc: compilation cancelled")

	// ErrUnsupportedPlatform is returned where the native compiler cannot be
	// loaded on the current OS or architecture.
	ErrUnsupportedPlatform = errors.New("dxc: native compiler not supported on this platform")

	// ErrClosed is returned by Compile after Close.
	ErrClosed = errors.New("dxc: compiler closed")
)

// CompilationError reports that the native compiler rejected a program.
type CompilationError struct {
	// Message is the cleaned compiler diagnostic. It always ends with a
	// period.
	Message string
}

// Error implements the error interface.
func (e *CompilationError) Error() string {
	return "dxc: compilation failed: " + e.Message
}

// LoadError reports that a native library could not be extracted or loaded.
type LoadError struct {
	// File is the base name of the library that failed.
	File string

	// Code is the OS error code, or 0 when none is available.
	Code uint32

	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("dxc: load %s: %v (error code %d)", e.File, e.Err, e.Code)
	}
	return fmt.Sprintf("dxc: load %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

// diagnosticPrefix matches the location prefix the compiler puts on every
// diagnostic line for the in-memory source name.
var diagnosticPrefix = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(sourceName) + `:\d+:\d+: `)

// cleanDiagnostics strips location prefixes, trims the message and ensures
// it ends with a period.
func cleanDiagnostics(raw string) string {
	msg := strings.ReplaceAll(raw, "\r\n", "\n")
	msg = diagnosticPrefix.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "The shader compiler failed without a diagnostic"
	}
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

// Code pages reported by IDxcBlobEncoding.
const (
	codePageUTF8  = 65001
	codePageUTF16 = 1200
)

// decodeDiagnostics converts a native error buffer to a Go string.
func decodeDiagnostics(data []byte, codePage uint32) string {
	if codePage == codePageUTF16 {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			data = out
		}
	}
	return strings.TrimRight(string(data), "\x00")
}
