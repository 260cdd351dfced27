package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders tables into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the table title and body. Core fonts
// carry no Vietnamese glyphs, so text is folded to ASCII.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if len(table.HeaderRows) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header row")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(8, 12, 8)
	pdf.AddPage()

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 10, strings.ToUpper(ASCIIFold(table.Title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	columns := 0
	for _, rows := range [][][]string{table.HeaderRows, table.Rows} {
		for _, row := range rows {
			if len(row) > columns {
				columns = len(row)
			}
		}
	}
	widths := columnWidths(columns, 281.0)

	pdf.SetFont("Arial", "B", 8)
	for i, row := range table.HeaderRows {
		if i == 0 && table.Title != "" {
			continue
		}
		writeRow(pdf, row, widths, 7, "C")
	}

	pdf.SetFont("Arial", "", 8)
	for _, row := range table.Rows {
		writeRow(pdf, row, widths, 6, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(pdf *gofpdf.Fpdf, row []string, widths []float64, height float64, align string) {
	for i, w := range widths {
		value := ""
		if i < len(row) {
			value = ASCIIFold(row[i])
		}
		pdf.CellFormat(w, height, value, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

// columnWidths gives the name columns more room than the per-Sunday marks.
func columnWidths(columns int, total float64) []float64 {
	if columns <= 0 {
		return nil
	}
	widths := make([]float64, columns)
	if columns <= 3 {
		for i := range widths {
			widths[i] = total / float64(columns)
		}
		return widths
	}
	widths[0], widths[1], widths[2] = 10, 28, 50
	rest := (total - 88) / float64(columns-3)
	for i := 3; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}
