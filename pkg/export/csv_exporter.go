package export

import (
	"encoding/csv"
	"fmt"
	"strings"
)

const byteOrderMark = "\ufeff"

// Content types served for rendered sheets.
const (
	CSVContentType = "text/csv; charset=utf-8"
	PDFContentType = "application/pdf"
)

// Table is a rendered sheet: one or more header rows followed by body rows.
type Table struct {
	Title      string
	HeaderRows [][]string
	Rows       [][]string
}

// CSVExporter renders tables as BOM-prefixed CSV so spreadsheet apps keep
// Vietnamese diacritics.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.HeaderRows) == 0 {
		return nil, fmt.Errorf("csv requires at least one header row")
	}
	records := make([][]string, 0, len(table.HeaderRows)+len(table.Rows))
	records = append(records, table.HeaderRows...)
	records = append(records, table.Rows...)
	return []byte(WithBOM(JoinRecords(records))), nil
}

// GenerateCSV renders a header row plus data rows joined by "\n".
func GenerateCSV(headers []string, rows [][]string) string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, headers)
	records = append(records, rows...)
	return JoinRecords(records)
}

// JoinRecords writes records as CSV with "\n" line endings and no
// trailing newline.
func JoinRecords(records [][]string) string {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	w.UseCRLF = false
	// Writes into a strings.Builder with the default comma cannot fail.
	_ = w.WriteAll(records)
	return strings.TrimSuffix(buf.String(), "\n")
}

// WithBOM prefixes text with a UTF-8 byte-order mark once.
func WithBOM(text string) string {
	if strings.HasPrefix(text, byteOrderMark) {
		return text
	}
	return byteOrderMark + text
}
