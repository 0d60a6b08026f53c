package sheet

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Open reads an XLSX or legacy XLS workbook, sniffing the format from the
// content.
func (c *Capability) Open(data []byte) (*Workbook, error) {
	mt := mimetype.Detect(data)
	if mimetype.EqualsAny(mt.String(), "application/vnd.ms-excel", "application/x-ole-storage") {
		return openXLS(bytes.NewReader(data))
	}
	return openXLSX(bytes.NewReader(data))
}

func openXLSX(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

func openXLS(r io.Reader) (*Workbook, error) {
	// extrame/xls reads from a path, so the bytes go through a temp file.
	tmpFile, err := os.CreateTemp("", "officeconv-*.xls")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmpFile.Close()

	book, err := xls.Open(tmpPath, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open XLS: %w", err)
	}

	wb := &Workbook{}
	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		name := ws.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		var rows [][]string
		for rowIdx := 0; rowIdx <= int(ws.MaxRow); rowIdx++ {
			row := ws.Row(rowIdx)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for colIdx := 0; colIdx < row.LastCol(); colIdx++ {
				cells = append(cells, row.Col(colIdx))
			}
			rows = append(rows, cells)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: trimTrailingEmpty(rows)})
	}
	return wb, nil
}

func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}
