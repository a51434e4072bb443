// Package reports builds the detailed ticket report and renders it as an
// Excel workbook or a landscape PDF table.
package reports
