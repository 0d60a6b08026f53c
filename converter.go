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
	"context"

	"github.com/spf13/afero"
)

// Paths inside the engine's private filesystem namespace.
const (
	WorkingDir = "/working"
	MediaDir   = "/working/media"
	FontsDir   = "/working/fonts"
	ThemesDir  = "/working/themes"
	ParamsPath = "/working/params.xml"
)

var workingDirs = []string{WorkingDir, MediaDir, FontsDir, ThemesDir}

// VirtualFS is the engine's filesystem namespace.
type VirtualFS = afero.Fs

// EngineHandle is a ready conversion engine.
type EngineHandle interface {
	// Call runs the engine entry point with a single argument, normally the
	// path of a task descriptor, and returns its exit status.
	Call(ctx context.Context, arg string) (int, error)

	// FS returns the namespace the engine reads from and writes to.
	FS() VirtualFS
}

// SourceFile is a document handed to the converter by the host.
type SourceFile struct {
	Name     string
	MIMEType string
	Charset  string
	Data     []byte
}

// ConversionResult holds the output of a forward conversion.
type ConversionResult struct {
	FileName string
	Type     DocumentType
	Bin      []byte
	// Media maps "media/<name>" to a dereferenceable URL.
	Media map[string]string
}

// BinConversionResult holds the output of a reverse conversion.
type BinConversionResult struct {
	FileName string
	Data     []byte
}
