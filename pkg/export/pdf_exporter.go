package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled value printed on one line of a document section.
type Field struct {
	Label string
	Value string
}

// Section is a titled block of a document. Any combination of fields, free
// text and a table may be set; they are printed in that order.
type Section struct {
	Title  string
	Fields []Field
	Body   string
	Table  *Dataset
}

// PDFExporter renders datasets and case documents into PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf, tr := newDocument("L")
	writeTitle(pdf, tr, title)
	writeTable(pdf, tr, data, 277)
	return output(pdf)
}

// RenderDocument creates a portrait document made of titled sections.
func (e *PDFExporter) RenderDocument(title string, sections []Section) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("pdf document requires at least one section")
	}
	pdf, tr := newDocument("P")
	writeTitle(pdf, tr, title)
	for _, section := range sections {
		if section.Title != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(0, 8, tr(section.Title), "", 1, "L", true, 0, "")
			pdf.Ln(1)
		}
		for _, field := range section.Fields {
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(50, 6, tr(field.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 6, tr(field.Value), "", "L", false)
		}
		if strings.TrimSpace(section.Body) != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, tr(section.Body), "", "L", false)
		}
		if section.Table != nil && len(section.Table.Headers) > 0 {
			pdf.Ln(1)
			writeTable(pdf, tr, *section.Table, 190)
		}
		pdf.Ln(4)
	}
	return output(pdf)
}

func newDocument(orientation string) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func writeTitle(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	if title == "" {
		return
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
	pdf.Ln(5)
}

func writeTable(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset, width float64) {
	pdf.SetFont("Arial", "B", 9)
	colWidth := width / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(truncate(row[header], colWidth)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// truncate keeps cell text roughly within its column at the 8pt table font.
func truncate(value string, colWidth float64) string {
	limit := int(colWidth / 1.6)
	runes := []rune(value)
	if limit < 4 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
