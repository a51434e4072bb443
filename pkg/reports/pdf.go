package reports

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

// PDFTitle is printed above the table.
const PDFTitle = "Detailed Ticket Report"

type pdfColumn struct {
	header string
	width  float64
}

// The widths fill the 277mm printable width of landscape A4.
var pdfColumns = []pdfColumn{
	{"Ticket ID", 20}, {"Title", 22}, {"Status", 13}, {"Project", 16}, {"Location", 16},
	{"Company", 16}, {"Complaint By", 15}, {"Channel", 11}, {"Complaint Time", 17},
	{"Created By", 15}, {"Created At", 17}, {"Responded By", 15}, {"Responded At", 17},
	{"Root Cause", 20}, {"Root Cause Provider", 16}, {"Resolved At", 17}, {"Resolution Time", 14},
}

// PDFHeaders returns the table column headers in order.
func PDFHeaders() []string {
	out := make([]string, len(pdfColumns))
	for i, c := range pdfColumns {
		out[i] = c.header
	}
	return out
}

func pdfRow(t *tickets.Ticket) []string {
	return []string{
		t.TicketUID, t.Title, string(t.Status), t.ProjectName, t.LocationName, t.CompanyName, t.ComplaintBy,
		t.Channel, FormatDateTime(&t.ComplaintAt), orPlaceholder(t.CreatedByName), FormatDateTime(&t.CreatedAt),
		orPlaceholder(t.RespondedByName), FormatDateTime(t.FirstRespondedAt), orPlaceholder(t.RootCause),
		orPlaceholder(t.RootCauseProvider), resolvedAt(t), ResolutionTime(t),
	}
}

const (
	pdfMargin     = 10.0
	pdfTableTop   = 20.0
	headerFont    = 6.0
	bodyFont      = 5.0
	cellPadding   = 1.5
	lineHeightPer = 0.5
)

type pdfTable struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// WritePDF writes the report as a striped table on landscape A4 pages. The
// header row is repeated on every page.
func WritePDF(w io.Writer, list []*tickets.Ticket) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	t := &pdfTable{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(14, 16, PDFTitle)
	pdf.SetY(pdfTableTop)
	t.header()

	for i, ticket := range list {
		t.row(pdfRow(ticket), i%2 == 1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func (t *pdfTable) header() {
	t.pdf.SetFont("Helvetica", "B", headerFont)
	t.pdf.SetFillColor(22, 160, 133)
	t.pdf.SetTextColor(255, 255, 255)
	t.draw(PDFHeaders(), headerFont)
	t.pdf.SetTextColor(0, 0, 0)
}

func (t *pdfTable) row(values []string, striped bool) {
	t.pdf.SetFont("Helvetica", "", bodyFont)
	height := t.height(values, bodyFont)
	_, pageHeight := t.pdf.GetPageSize()
	if t.pdf.GetY()+height > pageHeight-pdfMargin {
		t.pdf.AddPage()
		t.header()
		t.pdf.SetFont("Helvetica", "", bodyFont)
	}
	if striped {
		t.pdf.SetFillColor(245, 245, 245)
	} else {
		t.pdf.SetFillColor(255, 255, 255)
	}
	t.draw(values, bodyFont)
}

// height returns the row height needed to wrap every value in its column.
func (t *pdfTable) height(values []string, size float64) float64 {
	lines := 1
	for i, v := range values {
		n := len(t.pdf.SplitText(t.tr(v), pdfColumns[i].width-2*cellPadding))
		if n > lines {
			lines = n
		}
	}
	return float64(lines)*t.lineHeight(size) + 2*cellPadding
}

func (t *pdfTable) lineHeight(size float64) float64 {
	return t.pdf.PointConvert(size) * (1 + lineHeightPer)
}

// draw renders one row of filled, bordered cells at the current position.
func (t *pdfTable) draw(values []string, size float64) {
	height := t.height(values, size)
	x, y := t.pdf.GetXY()
	t.pdf.SetDrawColor(220, 220, 220)
	for i, v := range values {
		w := pdfColumns[i].width
		t.pdf.Rect(x, y, w, height, "FD")
		t.pdf.SetXY(x+cellPadding, y+cellPadding)
		t.pdf.MultiCell(w-2*cellPadding, t.lineHeight(size), t.tr(v), "", "L", false)
		x += w
	}
	t.pdf.SetXY(pdfMargin, y+height)
}
