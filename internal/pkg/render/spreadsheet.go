package render

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is a single worksheet of tabular data.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Spreadsheet renders the sheet as an XLSX workbook.
func Spreadsheet(sheet Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}
	if name != "Sheet1" {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
		index, err := f.GetSheetIndex(name)
		if err != nil {
			return nil, err
		}
		f.SetActiveSheet(index)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range sheet.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(name, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(name, cell, cell, boldStyle); err != nil {
			return nil, err
		}
	}

	for r, row := range sheet.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}
