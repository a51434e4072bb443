package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// exportColumn is one column of the tabular exports.
type exportColumn struct {
	header string
	value  func(*Event) string
}

var exportColumns = []exportColumn{
	{"ID", func(e *Event) string { return strconv.FormatInt(e.ID, 10) }},
	{"Timestamp", func(e *Event) string { return e.Timestamp.Format(exportTimeLayout) }},
	{"Event", func(e *Event) string { return string(e.EventType) }},
	{"Status", func(e *Event) string { return string(e.Status) }},
	{"User ID", func(e *Event) string { return optionalID(e.UserID) }},
	{"User Email", func(e *Event) string { return e.UserEmail }},
	{"Company ID", func(e *Event) string { return optionalID(e.CompanyID) }},
	{"Resource", func(e *Event) string { return string(e.ResourceType) }},
	{"Resource ID", func(e *Event) string { return e.ResourceID }},
	{"IP Address", func(e *Event) string { return e.IPAddress }},
	{"Request ID", func(e *Event) string { return e.RequestID }},
	{"Method", func(e *Event) string { return e.Method }},
	{"Path", func(e *Event) string { return e.Path }},
	{"HTTP Status", func(e *Event) string { return strconv.Itoa(e.StatusCode) }},
	{"Message", func(e *Event) string { return e.Message }},
	{"Error", func(e *Event) string { return e.ErrorMessage }},
}

// Export encodes events in the requested format. Unknown formats fall back
// to JSON.
func Export(events []*Event, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		return exportCSV(events)
	case ExportFormatNDJSON:
		return exportNDJSON(events)
	case ExportFormatXLSX:
		return exportXLSX(events)
	default:
		return json.MarshalIndent(events, "", "  ")
	}
}

func exportNDJSON(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("failed to encode audit event %d: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func exportCSV(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	row := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		row[i] = c.header
	}
	if err := w.Write(row); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range events {
		for i, c := range exportColumns {
			row[i] = c.value(e)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// exportXLSX writes one "Audit" sheet with a frozen header row.
func exportXLSX(events []*Event) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name audit sheet: %w", err)
	}

	header := make([]interface{}, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c.header
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write audit header: %w", err)
	}
	for r, e := range events {
		cells := make([]interface{}, len(exportColumns))
		for i, c := range exportColumns {
			cells[i] = c.value(e)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("failed to write audit row: %w", err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("failed to freeze audit header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write audit workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
