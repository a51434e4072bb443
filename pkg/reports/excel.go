package reports

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

// ExcelSheet is the name of the single sheet in the workbook.
const ExcelSheet = "Tickets Report"

const (
	minColumnWidth = 12
	maxColumnWidth = 50
)

// ExcelHeaders are the workbook columns in order.
var ExcelHeaders = []string{
	"Ticket ID", "Title", "Status", "Description", "Project", "Location", "Company",
	"Complaint By", "Complaint Channel", "Complaint Time", "Created By", "Created At",
	"Responded By", "Responded At", "Response Remarks", "Resolved By",
	"Root Cause", "Root Cause Provider", "Resolved At", "Resolution Time",
}

func excelRow(t *tickets.Ticket) []string {
	return []string{
		t.TicketUID, t.Title, string(t.Status), t.Description, t.ProjectName, t.LocationName, t.CompanyName,
		t.ComplaintBy, t.Channel, FormatDateTime(&t.ComplaintAt), orPlaceholder(t.CreatedByName), FormatDateTime(&t.CreatedAt),
		orPlaceholder(t.RespondedByName), FormatDateTime(t.FirstRespondedAt), orPlaceholder(t.FirstRespondRemarks),
		orPlaceholder(t.ResolvedByName),
		orPlaceholder(t.RootCause), orPlaceholder(t.RootCauseProvider), resolvedAt(t), ResolutionTime(t),
	}
}

// ColumnWidth returns the width for a column whose longest value has n
// characters.
func ColumnWidth(n int) float64 {
	w := n + 4
	if w < minColumnWidth {
		w = minColumnWidth
	}
	if w > maxColumnWidth {
		w = maxColumnWidth
	}
	return float64(w)
}

// WriteExcel writes the report as a workbook with one styled sheet.
func WriteExcel(w io.Writer, list []*tickets.Ticket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExcelSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	longest := make([]int, len(ExcelHeaders))
	header := make([]interface{}, len(ExcelHeaders))
	for i, h := range ExcelHeaders {
		header[i] = h
		longest[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(ExcelSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, t := range list {
		values := excelRow(t)
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
			if n := utf8.RuneCountInString(v); n > longest[i] {
				longest[i] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExcelSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Calibri", Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"0284C7"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(ExcelHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ExcelSheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, n := range longest {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(ExcelSheet, col, col, ColumnWidth(n)); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
