package ingest

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first worksheet; its first row is the header.
func readXLSX(data []byte) (*frame, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx failed: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q failed: %w", sheets[0], err)
	}
	return frameFromGrid(rows)
}

// readXLS reads the first worksheet of a legacy BIFF workbook.
func readXLS(data []byte) (*frame, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls failed: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	var grid [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		grid = append(grid, cells)
	}
	return frameFromGrid(grid)
}

// frameFromGrid treats the first row as the header. Spreadsheet rows come
// back ragged, so short rows are padded and trailing blank rows dropped.
func frameFromGrid(grid [][]string) (*frame, error) {
	for len(grid) > 0 && isBlankRow(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, fmt.Errorf("no columns to parse from sheet")
	}

	header := grid[0]
	width := len(header)
	for _, row := range grid[1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	headers := make([]string, width)
	copy(headers, header)

	f := newTextFrame(headers)
	for _, row := range grid[1:] {
		if isBlankRow(row) {
			continue
		}
		f.appendTextRow(row)
	}
	return f, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
