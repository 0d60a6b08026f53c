// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package officeconv

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotFound is returned when the bootstrap script loaded but did
	// not expose an engine module.
	ErrEngineNotFound = errors.New("X2T module not found after script loading")

	// ErrSaveAborted is returned by a SavePicker when the user dismisses it.
	// The converter treats it as a normal outcome.
	ErrSaveAborted = errors.New("save cancelled by user")
)

// ScriptLoadError is returned when the engine bootstrap script cannot be
// fetched or executed.
type ScriptLoadError struct {
	Path string
	Err  error
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("failed to load X2T WASM script %q: %v", e.Path, e.Err)
}

func (e *ScriptLoadError) Unwrap() error { return e.Err }

// InitializationTimeoutError is returned when the engine does not report
// readiness in time.
type InitializationTimeoutError struct {
	Timeout time.Duration
}

func (e *InitializationTimeoutError) Error() string {
	return fmt.Sprintf("X2T initialization timeout after %dms", e.Timeout.Milliseconds())
}

// EngineStartError is returned when the engine reports that its runtime
// cannot start, e.g. because the binary does not compile.
type EngineStartError struct {
	Err error
}

func (e *EngineStartError) Error() string {
	return fmt.Sprintf("X2T runtime failed to start: %v", e.Err)
}

func (e *EngineStartError) Unwrap() error { return e.Err }

// UnsupportedFormatError is returned for extensions outside the document
// type map.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %q", e.Extension)
}

// ConversionFailedError is returned when the engine exits with a non-zero
// status. The meaning of Code is owned by the engine.
type ConversionFailedError struct {
	Code int
}

func (e *ConversionFailedError) Error() string {
	return fmt.Sprintf("conversion failed with code: %d", e.Code)
}

// TabularConversionError wraps any failure of the CSV fallback pipeline.
type TabularConversionError struct {
	Stage string
	Err   error
}

func (e *TabularConversionError) Error() string {
	return fmt.Sprintf("failed to convert CSV file (%s): %v. "+
		"Please ensure your CSV file is properly formatted, or convert it to XLSX manually, and try again.",
		e.Stage, e.Err)
}

func (e *TabularConversionError) Unwrap() error { return e.Err }

// IsUnsupportedFormat reports whether the error is an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// ExitCode returns the engine status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var target *ConversionFailedError
	if errors.As(err, &target) {
		return target.Code, true
	}
	return 0, false
}
