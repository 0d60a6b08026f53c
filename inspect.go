package officeconv

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nicholasgasior/officeconv/internal/ooxml"
)

var errMalformedPDF = errors.New("malformed PDF")

// inspectOutput logs what the engine produced. It never fails a
// conversion: a zero exit status is authoritative.
func (c *Converter) inspectOutput(fileName string, data []byte) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "pdf":
		pages, err := pdfPageCount(data)
		if err != nil {
			c.logger.Warn("X2T produced an unreadable PDF", slog.String("file", fileName), slog.Any("error", err))
			return
		}
		c.logger.Debug("PDF generated", slog.String("file", fileName), slog.Int("pages", pages))

	case "docx", "xlsx", "pptx":
		s, err := ooxml.Inspect(data)
		if err != nil {
			c.logger.Warn("X2T produced an unreadable OOXML package", slog.String("file", fileName), slog.Any("error", err))
			return
		}
		c.logger.Debug("OOXML package generated",
			slog.String("file", fileName),
			slog.String("main", s.MainPart),
			slog.Int("parts", s.Parts),
			slog.Int("sheets", s.Sheets),
			slog.Int("slides", s.Slides),
			slog.Int("images", s.Images))
	}
}

func pdfPageCount(data []byte) (pages int, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = errMalformedPDF
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}
