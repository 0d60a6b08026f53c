package officeconv

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/nicholasgasior/officeconv/internal/sheet"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errEmptyCSV = errors.New("CSV file is empty")

// Stages of the CSV fallback pipeline, reported by TabularConversionError.
const (
	stageRead      = "read CSV"
	stageDirect    = "direct CSV conversion"
	stageLoad      = "load spreadsheet library"
	stageDecode    = "decode CSV"
	stageParse     = "parse CSV"
	stageSerialize = "write XLSX"
	stageConvert   = "convert XLSX"
	stageExport    = "export CSV"
)

func tabularErr(stage string, err error) error {
	return &TabularConversionError{Stage: stage, Err: err}
}

// convertTabularToBin converts CSV by way of an XLSX intermediate, which
// the engine reads reliably. The result keeps the original CSV name.
func (c *Converter) convertTabularToBin(ctx context.Context, h EngineHandle, f SourceFile, docType DocumentType) (*ConversionResult, error) {
	if len(f.Data) == 0 {
		return nil, tabularErr(stageRead, errEmptyCSV)
	}
	c.logger.Info("CSV file detected, converting to XLSX", slog.Int("bytes", len(f.Data)))

	if c.directTabular {
		result, err := c.convertTabularDirect(ctx, h, f, docType)
		if err == nil {
			return result, nil
		}
		var failed *ConversionFailedError
		if !errors.As(err, &failed) {
			return nil, tabularErr(stageDirect, err)
		}
		c.logger.Warn("Direct CSV conversion failed, falling back to XLSX", slog.Int("code", failed.Code))
	}

	sheets, err := c.loadSheets(ctx)
	if err != nil {
		return nil, tabularErr(stageLoad, err)
	}

	text, err := c.decodeTabularText(f.Data, f.Charset)
	if err != nil {
		return nil, tabularErr(stageDecode, err)
	}

	wb, err := sheets.Parse(text)
	if err != nil {
		return nil, tabularErr(stageParse, err)
	}

	xlsx, err := sheets.Serialize(wb, sheet.FormatXLSX)
	if err != nil {
		return nil, tabularErr(stageSerialize, err)
	}
	c.logger.Info("CSV converted to XLSX, now converting with X2T")

	result, err := c.convertToBin(ctx, h, xlsxName(f.Name), xlsx, docType)
	if err != nil {
		return nil, tabularErr(stageConvert, err)
	}
	result.FileName = SanitizeFileName(f.Name)
	return result, nil
}

// convertTabularDirect hands the CSV to the engine as-is, with an explicit
// source format.
func (c *Converter) convertTabularDirect(ctx context.Context, h EngineHandle, f SourceFile, docType DocumentType) (*ConversionResult, error) {
	data := f.Data
	if !bytes.HasPrefix(data, utf8BOM) {
		data = append(append([]byte{}, utf8BOM...), data...)
	}

	sanitized := SanitizeFileName(f.Name)
	inputPath := WorkingDir + "/" + sanitized
	c.clearMedia(h.FS())

	task := NewConversionTask(inputPath, inputPath+".bin", FormatFromOption(FormatCSV))
	bin, err := c.runTask(ctx, h, data, task)
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

// convertBinToTabular converts a binary document to the intermediate
// spreadsheet format, then renders its first sheet as CSV with a UTF-8 BOM.
// Other sheets are not exported.
func (c *Converter) convertBinToTabular(ctx context.Context, h EngineHandle, bin []byte, base string) ([]byte, error) {
	format := c.tabularIntermediate
	task := NewConversionTask(
		WorkingDir+"/"+base+".bin",
		WorkingDir+"/"+base+"."+string(format),
	)
	intermediate, err := c.runTask(ctx, h, bin, task)
	if err != nil {
		return nil, err
	}

	sheets, err := c.loadSheets(ctx)
	if err != nil {
		return nil, tabularErr(stageLoad, err)
	}

	wb, err := sheets.Open(intermediate)
	if err != nil {
		return nil, tabularErr(stageExport, err)
	}
	first, err := wb.FirstSheet()
	if err != nil {
		return nil, tabularErr(stageExport, err)
	}
	if len(wb.Sheets) > 1 {
		c.logger.Warn("Only the first sheet is exported to CSV",
			slog.String("sheet", first.Name),
			slog.Int("sheets", len(wb.Sheets)))
	}

	text, err := sheets.SheetToDelimitedText(first)
	if err != nil {
		return nil, tabularErr(stageExport, err)
	}

	out := make([]byte, 0, len(utf8BOM)+len(text))
	out = append(out, utf8BOM...)
	out = append(out, text...)
	return out, nil
}

// xlsxName swaps a trailing .csv for .xlsx.
func xlsxName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return name[:len(name)-len(".csv")] + ".xlsx"
	}
	return name + ".xlsx"
}

// decodeTabularText decodes CSV bytes to text. A UTF-8 BOM forces UTF-8;
// otherwise a charset hint wins, then clean UTF-8, then (optionally)
// detection, then Latin-1.
func (c *Converter) decodeTabularText(data []byte, charsetHint string) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return decodeUTF8BOM(data)
	}

	if charsetHint != "" {
		if enc := lookupEncoding(charsetHint); enc != nil {
			decoded, err := enc.NewDecoder().Bytes(data)
			if err == nil {
				return string(decoded), nil
			}
			c.logger.Warn("CSV charset hint did not decode cleanly", slog.String("charset", charsetHint), slog.Any("error", err))
		} else {
			c.logger.Warn("Unknown CSV charset hint", slog.String("charset", charsetHint))
		}
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	if c.detectCharset {
		if text, name, ok := decodeDetected(data); ok {
			c.logger.Debug("Detected CSV charset", slog.String("charset", name))
			return text, nil
		}
	}

	c.logger.Debug("CSV is not valid UTF-8, decoding as Latin-1")
	return decodeLatin1(data)
}
