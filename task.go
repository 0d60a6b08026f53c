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
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	nsXSI = "http://www.w3.org/2001/XMLSchema-instance"
	nsXSD = "http://www.w3.org/2001/XMLSchema"

	// FormatCSV is the engine's numeric code for delimited text input.
	FormatCSV = 260
)

// ConversionTask tells the engine which file to read, which to write and
// under what options. Build it with NewConversionTask.
type ConversionTask struct {
	SourcePath string
	DestPath   string
	ThemeDir   string
	NoBase64   bool
	Extra      []string
}

// NewConversionTask builds a task with the standard theme directory and
// inline media enabled. Extra fragments are emitted verbatim, in order.
func NewConversionTask(from, to string, extra ...string) ConversionTask {
	return ConversionTask{
		SourcePath: from,
		DestPath:   to,
		ThemeDir:   ThemesDir,
		Extra:      append([]string(nil), extra...),
	}
}

// FormatFromOption forces the engine to treat the source as the given format.
func FormatFromOption(code int) string {
	return fmt.Sprintf("<m_nFormatFrom>%d</m_nFormatFrom>", code)
}

// FontDirOption points the engine at a font directory, used for PDF output.
func FontDirOption(dir string) string {
	var b strings.Builder
	b.WriteString("<m_sFontDir>")
	_ = xml.EscapeText(&b, []byte(dir))
	b.WriteString("</m_sFontDir>")
	return b.String()
}

type taskQueueDataConvert struct {
	XMLName  xml.Name `xml:"TaskQueueDataConvert"`
	XSI      string   `xml:"xmlns:xsi,attr"`
	XSD      string   `xml:"xmlns:xsd,attr"`
	FileFrom string   `xml:"m_sFileFrom"`
	ThemeDir string   `xml:"m_sThemeDir"`
	FileTo   string   `xml:"m_sFileTo"`
	NoBase64 bool     `xml:"m_bIsNoBase64"`
	Extra    string   `xml:",innerxml"`
}

// Descriptor renders the task as the XML document the engine consumes.
func (t ConversionTask) Descriptor() ([]byte, error) {
	doc := taskQueueDataConvert{
		XSI:      nsXSI,
		XSD:      nsXSD,
		FileFrom: t.SourcePath,
		ThemeDir: t.ThemeDir,
		FileTo:   t.DestPath,
		NoBase64: t.NoBase64,
	}
	if len(t.Extra) > 0 {
		doc.Extra = "\n  " + strings.Join(t.Extra, "\n  ") + "\n"
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode task descriptor: %w", err)
	}
	return buf.Bytes(), nil
}
