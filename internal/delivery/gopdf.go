package delivery

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
)

// Item table column widths in mm; they fill an A5 page inside 12mm margins.
var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Code", 24, "L"},
	{"Description", 58, "L"},
	{"Qty", 18, "R"},
	{"Unit", 16, "L"},
}

// BasicPDF draws the summary with gofpdf core fonts. It needs no browser,
// so it backs up ChromeRenderer on hosts without Chrome.
type BasicPDF struct{}

func (BasicPDF) RenderPDF(_ context.Context, doc *model.StructuredDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, s := range doc.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(s.Title), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
		for _, r := range s.Rows {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(42, 6, tr(r.Label+":"), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(r.Value), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if doc.HasItems() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("Items (%d)", len(doc.Items)), "B", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range itemColumns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for i, it := range doc.Items {
			cells := []string{
				fmt.Sprint(i + 1),
				tr(it.Code),
				tr(it.Description),
				templates.FormatQty(it.Quantity),
				tr(it.Unit),
			}
			for j, c := range itemColumns {
				pdf.CellFormat(c.width, 6, cells[j], "1", 0, c.align, false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	// Footer
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated: "+templates.FormatDate(doc.GeneratedAt), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed generating pdf: %w", err)
	}
	return buf.Bytes(), nil
}
