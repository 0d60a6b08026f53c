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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// revokeDelay is how long a download URL stays valid after retrieval.
const revokeDelay = 100 * time.Millisecond

// FilePickerAcceptType describes one file type offered by a save surface.
type FilePickerAcceptType struct {
	Description string
	// Accept maps a MIME type to its extensions (with leading dot).
	Accept map[string][]string
}

// SaveFilePickerOptions pre-populates a save surface.
type SaveFilePickerOptions struct {
	SuggestedName string
	Types         []FilePickerAcceptType
}

// FileHandle is a destination chosen through a save surface.
type FileHandle interface {
	CreateWritable(ctx context.Context) (io.WriteCloser, error)
}

// SavePicker is an interactive surface that lets the user choose where a
// file is saved. It returns ErrSaveAborted when the user cancels.
type SavePicker interface {
	ShowSaveFilePicker(ctx context.Context, opts SaveFilePickerOptions) (FileHandle, error)
}

var mimeTypes = map[string]string{
	// Documents
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
	"odt":  "application/vnd.oasis.opendocument.text",
	"rtf":  "application/rtf",
	"txt":  "text/plain",
	"pdf":  "application/pdf",

	// Spreadsheets
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"csv":  "text/csv",

	// Presentations
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"ppt":  "application/vnd.ms-powerpoint",
	"odp":  "application/vnd.oasis.opendocument.presentation",

	// Images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
}

var descriptions = map[string]string{
	"docx": "Word Document",
	"doc":  "Word 97-2003 Document",
	"odt":  "OpenDocument Text",
	"pdf":  "PDF Document",
	"xlsx": "Excel Workbook",
	"xls":  "Excel 97-2003 Workbook",
	"ods":  "OpenDocument Spreadsheet",
	"pptx": "PowerPoint Presentation",
	"ppt":  "PowerPoint 97-2003 Presentation",
	"odp":  "OpenDocument Presentation",
	"txt":  "Text Document",
	"rtf":  "Rich Text Format",
	"csv":  "CSV File",
}

// MIMETypeForExtension returns the MIME type for an extension, or
// application/octet-stream.
func MIMETypeForExtension(ext string) string {
	if m, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return m
	}
	return "application/octet-stream"
}

// DescriptionForExtension returns a human-readable type name for an
// extension, or "Document".
func DescriptionForExtension(ext string) string {
	if d, ok := descriptions[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return d
	}
	return "Document"
}

// saveWithFileSystemAPI persists data through the save picker, or through
// the download fallback when no picker is available.
func (c *Converter) saveWithFileSystemAPI(ctx context.Context, data []byte, fileName string) error {
	if c.picker == nil {
		return c.downloadFile(ctx, data, fileName)
	}

	err := c.saveWithPicker(ctx, data, fileName)
	if errors.Is(err, ErrSaveAborted) {
		c.logger.Info("User cancelled the save operation", slog.String("file", fileName))
		return nil
	}
	return err
}

func (c *Converter) saveWithPicker(ctx context.Context, data []byte, fileName string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	mimeType := MIMETypeForExtension(ext)

	handle, err := c.picker.ShowSaveFilePicker(ctx, SaveFilePickerOptions{
		SuggestedName: fileName,
		Types: []FilePickerAcceptType{{
			Description: DescriptionForExtension(ext),
			Accept:      map[string][]string{mimeType: {"." + ext}},
		}},
	})
	if err != nil {
		return err
	}

	w, err := handle.CreateWritable(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", fileName, err)
	}

	c.logger.Info("File saved successfully", slog.String("file", fileName))
	return nil
}

// downloadFile mints a transient URL for data, retrieves it into the
// download directory and revokes the URL shortly after retrieval.
func (c *Converter) downloadFile(ctx context.Context, data []byte, fileName string) error {
	url, err := c.blobs.CreateObjectURL(ctx, data, MIMETypeForExtension(filepath.Ext(fileName)))
	if err != nil {
		return fmt.Errorf("create download URL: %w", err)
	}
	body, err := c.blobs.Open(ctx, url)
	if err != nil {
		c.blobs.RevokeObjectURL(url)
		return fmt.Errorf("retrieve download: %w", err)
	}
	time.AfterFunc(revokeDelay, func() {
		c.blobs.RevokeObjectURL(url)
	})

	if err := c.hostFS.MkdirAll(c.downloadDir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	dest := filepath.Join(c.downloadDir, fileName)
	if err := afero.WriteFile(c.hostFS, dest, body, 0o644); err != nil {
		return fmt.Errorf("write download: %w", err)
	}

	c.logger.Info("File downloaded", slog.String("path", dest))
	return nil
}
