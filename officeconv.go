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
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/nicholasgasior/officeconv/internal/sheet"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultInitTimeout is how long Initialize waits for engine readiness.
	DefaultInitTimeout = 300 * time.Second

	defaultMediaConcurrency = 8
	defaultTargetExt        = "DOCX"
)

// reTargetExt bounds reverse-conversion targets to plain extensions, which
// are spliced into engine and host paths.
var reTargetExt = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

// Converter drives the X2T conversion engine. Conversions on one Converter
// are serialized because they share the engine's /working namespace.
type Converter struct {
	bootstrap           Bootstrap
	basePath            string
	workRoot            string
	initTimeout         time.Duration
	logger              *slog.Logger
	blobs               BlobStore
	picker              SavePicker
	downloadDir         string
	hostFS              afero.Fs
	mediaConcurrency    int
	detectCharset       bool
	directTabular       bool
	tabularIntermediate sheet.Format
	loadSheets          func(ctx context.Context) (*sheet.Capability, error)

	mu           sync.Mutex
	state        State
	engine       EngineModule
	scriptLoaded bool
	generation   uint64
	group        singleflight.Group

	convMu sync.Mutex
}

// New creates a new Converter with the given options. The engine is not
// loaded until the first conversion or an explicit Initialize.
func New(opts ...Option) *Converter {
	c := &Converter{
		basePath:            ".",
		initTimeout:         DefaultInitTimeout,
		logger:              slog.Default(),
		downloadDir:         ".",
		mediaConcurrency:    defaultMediaConcurrency,
		tabularIntermediate: sheet.FormatXLSX,
		loadSheets:          sheet.Load,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bootstrap == nil {
		c.bootstrap = NewWASMBootstrap(c.workRoot, "", c.logger)
	}
	if c.blobs == nil {
		c.blobs = blob.NewStore("")
	}
	if c.hostFS == nil {
		c.hostFS = afero.NewOsFs()
	}
	return c
}

// ConvertDocument converts a source document into the engine's internal
// binary format and harvests the media it references.
func (c *Converter) ConvertDocument(ctx context.Context, f SourceFile) (*ConversionResult, error) {
	ext := ExtensionFor(f)
	docType, err := DocumentTypeFor(ext)
	if err != nil {
		return nil, err
	}

	h, err := c.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	c.convMu.Lock()
	defer c.convMu.Unlock()

	var result *ConversionResult
	if ext == "csv" {
		result, err = c.convertTabularToBin(ctx, h, f, docType)
	} else {
		result, err = c.convertToBin(ctx, h, f.Name, f.Data, docType)
	}
	if err != nil {
		return nil, fmt.Errorf("document conversion failed: %w", err)
	}
	return result, nil
}

// ConvertBinToDocumentAndDownload converts an internal binary document to
// targetExt (default DOCX) and persists it through the save surface or the
// download fallback. A cancelled save is not an error.
func (c *Converter) ConvertBinToDocumentAndDownload(ctx context.Context, bin []byte, originalFileName, targetExt string) (*BinConversionResult, error) {
	if targetExt == "" {
		targetExt = defaultTargetExt
	}
	if !reTargetExt.MatchString(targetExt) {
		return nil, &UnsupportedFormatError{Extension: targetExt}
	}

	h, err := c.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	base := stemOf(SanitizeFileName(originalFileName))
	outputFileName := base + "." + strings.ToLower(targetExt)

	c.convMu.Lock()
	defer c.convMu.Unlock()

	var data []byte
	if strings.EqualFold(targetExt, "csv") {
		data, err = c.convertBinToTabular(ctx, h, bin, base)
	} else {
		var extra []string
		if strings.EqualFold(targetExt, "pdf") {
			extra = append(extra, FontDirOption(FontsDir+"/"))
		}
		task := NewConversionTask(WorkingDir+"/"+base+".bin", WorkingDir+"/"+outputFileName, extra...)
		data, err = c.runTask(ctx, h, bin, task)
	}
	if err != nil {
		return nil, fmt.Errorf("bin to document conversion failed: %w", err)
	}

	c.inspectOutput(outputFileName, data)

	if err := c.saveWithFileSystemAPI(ctx, data, outputFileName); err != nil {
		return nil, fmt.Errorf("bin to document conversion failed: %w", err)
	}

	return &BinConversionResult{
		FileName: outputFileName,
		Data:     data,
	}, nil
}

// convertToBin stages a document under its sanitized name and converts it
// to <name>.bin.
func (c *Converter) convertToBin(ctx context.Context, h EngineHandle, name string, data []byte, docType DocumentType) (*ConversionResult, error) {
	sanitized := SanitizeFileName(name)
	inputPath := WorkingDir + "/" + sanitized

	c.clearMedia(h.FS())

	bin, err := c.runTask(ctx, h, data, NewConversionTask(inputPath, inputPath+".bin"))
	if err != nil {
		return nil, err
	}

	return &ConversionResult{
		FileName: sanitized,
		Type:     docType,
		Bin:      bin,
		Media:    c.readMediaFiles(ctx, h),
	}, nil
}
