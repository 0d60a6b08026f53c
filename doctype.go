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
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocumentType is the editor family a document belongs to.
type DocumentType string

const (
	DocumentTypeWord  DocumentType = "word"
	DocumentTypeCell  DocumentType = "cell"
	DocumentTypeSlide DocumentType = "slide"
)

var documentTypeMap = map[string]DocumentType{
	"docx": DocumentTypeWord,
	"doc":  DocumentTypeWord,
	"odt":  DocumentTypeWord,
	"rtf":  DocumentTypeWord,
	"txt":  DocumentTypeWord,
	"xlsx": DocumentTypeCell,
	"xls":  DocumentTypeCell,
	"ods":  DocumentTypeCell,
	"csv":  DocumentTypeCell,
	"pptx": DocumentTypeSlide,
	"ppt":  DocumentTypeSlide,
	"odp":  DocumentTypeSlide,
}

// DocumentTypeFor returns the document type for a file extension, with or
// without the leading dot.
func DocumentTypeFor(ext string) (DocumentType, error) {
	key := strings.ToLower(strings.TrimPrefix(ext, "."))
	t, ok := documentTypeMap[key]
	if !ok {
		return "", &UnsupportedFormatError{Extension: ext}
	}
	return t, nil
}

// ExtensionFor resolves the lowercase extension (without dot) of a source
// file. The declared MIME type wins over the file name; content sniffing is
// the last resort.
func ExtensionFor(f SourceFile) string {
	if f.MIMEType != "" {
		mt := strings.TrimSpace(strings.Split(f.MIMEType, ";")[0])
		if m := mimetype.Lookup(strings.ToLower(mt)); m != nil && m.Extension() != "" {
			return strings.TrimPrefix(m.Extension(), ".")
		}
	}
	if i := strings.LastIndex(f.Name, "."); i >= 0 && i < len(f.Name)-1 {
		return strings.ToLower(f.Name[i+1:])
	}
	if len(f.Data) > 0 {
		return strings.TrimPrefix(mimetype.Detect(f.Data).Extension(), ".")
	}
	return ""
}
