package pipeline

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"healio/internal"
)

// ImportXLSX feeds a workbook sheet through the same pipeline as a CSV
// stream. Cells arrive pre-split so the quote-aware tokenizer is
// bypassed; row 1 is a header, and an empty sheet fails the import the
// same way an empty stream does. An empty sheet name selects the first
// sheet in the workbook.
func (s *ImportService) ImportXLSX(content []byte, sheet, source string) internal.ImportResult {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return fatalResult("Error importing XLSX: " + err.Error())
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fatalResult("Error importing XLSX: " + err.Error())
	}
	if len(rows) == 0 {
		return fatalResult("XLSX sheet is empty")
	}

	// GetRows drops trailing empty cells; pad back to the header width
	// so a row with a blank pricing blob keeps its column count.
	width := len(rows[0])

	idx := 1 // row 0 is the header
	next := func() ([]string, bool) {
		if idx >= len(rows) {
			return nil, false
		}
		row := rows[idx]
		idx++
		for len(row) < width {
			row = append(row, "")
		}
		return row, true
	}

	return s.run(next, source)
}
