// Package sheet is the spreadsheet capability used to bracket engine calls
// for delimited text: it parses CSV into workbooks, writes XLSX, and reads
// XLSX or legacy XLS back.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is an intermediate spreadsheet format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DefaultSheetName is the name given to the sheet parsed from delimited text.
const DefaultSheetName = "Sheet1"

// ErrNoSheets is returned when a workbook has no sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatXLSX:
		return FormatXLSX, true
	case FormatXLS:
		return FormatXLS, true
	}
	return "", false
}

// Sheet is a named grid of cell text.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is an ordered list of sheets.
type Workbook struct {
	Sheets []Sheet
}

// FirstSheet returns the workbook's first sheet.
func (wb *Workbook) FirstSheet() (Sheet, error) {
	if wb == nil || len(wb.Sheets) == 0 {
		return Sheet{}, ErrNoSheets
	}
	return wb.Sheets[0], nil
}

// Capability is a loaded spreadsheet library. Obtain one through Load.
type Capability struct{}

// Parse reads comma-delimited text into a single-sheet workbook. Rows may
// have different lengths.
func (c *Capability) Parse(text string) (*Workbook, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return &Workbook{Sheets: []Sheet{{Name: DefaultSheetName, Rows: records}}}, nil
}

// Serialize writes the workbook in the given format. Only XLSX can be
// written.
func (c *Capability) Serialize(wb *Workbook, format Format) ([]byte, error) {
	if format != FormatXLSX {
		return nil, fmt.Errorf("serialize %s: unsupported output format", format)
	}
	if wb == nil || len(wb.Sheets) == 0 {
		return nil, ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return nil, fmt.Errorf("name sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", s.Name, err)
		}

		for r, row := range s.Rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = cellValue(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(s.Name, cell, &cells); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue stores numbers as numbers when their text survives the round
// trip unchanged; everything else stays a string.
func cellValue(v string) interface{} {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || strconv.FormatFloat(f, 'f', -1, 64) != v {
		return v
	}
	return f
}

// SheetToDelimitedText renders a sheet as comma-delimited text. Rows are
// padded to the widest row and separated by "\n" with no trailing newline.
func (c *Capability) SheetToDelimitedText(s Sheet) (string, error) {
	width := 0
	for _, row := range s.Rows {
		width = max(width, len(row))
	}

	var b bytes.Buffer
	w := csv.NewWriter(&b)
	for _, row := range s.Rows {
		padded := make([]string, width)
		copy(padded, row)
		if err := w.Write(padded); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
