package datatable

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the sheet name of exported workbooks.
const ExportSheet = "Data"

// ExportXLSX writes ExportRows as a one-sheet workbook with the column
// names as the header row. It returns ErrNoData when there are no rows.
func (t *Table[T]) ExportXLSX(w io.Writer) error {
	rows := t.ExportRows()
	if len(rows) == 0 {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(t.Columns))
	for _, name := range t.Headers() {
		header = append(header, name)
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		values := t.Values(row)
		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = Stringify(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
