package exporter

import (
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PDFEncoder renders frames as a simple bordered grid, one cell per value.
// PDF output is meant for small human-facing snapshots; it is slower and
// heavier than CSV or JSON Lines.
type PDFEncoder struct {
	pdf       *fpdf.Fpdf
	w         io.Writer
	finalized bool
	err       error
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	pdf.AddPage()
	return &PDFEncoder{
		pdf: pdf,
		w:   w,
	}
}

func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.pdf.SetFont("Arial", "B", 10)
	colWidth := e.columnWidth(len(columns))
	for _, col := range columns {
		e.pdf.CellFormat(colWidth, 7, col, "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 10)
	return nil
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	colWidth := e.columnWidth(len(values))
	for _, v := range values {
		str := toString(v)
		// The CSV formula guard quote is just noise in a PDF cell.
		str = strings.TrimPrefix(str, "'")
		e.pdf.CellFormat(colWidth, 7, str, "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	return nil
}

// columnWidth distributes the usable page width evenly across columns.
func (e *PDFEncoder) columnWidth(n int) float64 {
	if n == 0 {
		return 0
	}
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	return (pageWidth - left - right) / float64(n)
}

// Flush writes the document. Like the Excel encoder, the PDF trailer can
// only be emitted once.
func (e *PDFEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.finalized {
		return nil
	}
	e.finalized = true
	return e.pdf.Output(e.w)
}

func (e *PDFEncoder) Error() error {
	return e.err
}

func (e *PDFEncoder) Close() error {
	return e.Flush()
}
