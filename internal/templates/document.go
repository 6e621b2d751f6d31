package templates

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

//go:embed summary.html.tmpl
var summaryHTML string

// Helper functions for the document template.
var templateFuncs = template.FuncMap{
	"formatQty":  FormatQty,
	"formatDate": FormatDate,
	"inc":        func(i int) int { return i + 1 },
}

var documentTemplate = template.Must(template.New("summary").Funcs(templateFuncs).Parse(summaryHTML))

// FormatQty drops the fraction for whole quantities.
func FormatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(model.TimestampLayout)
}

// DocumentHTML renders doc as a standalone A5 HTML page.
func DocumentHTML(doc *model.StructuredDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// DocumentText renders doc as plain text for printers without a PDF filter.
func DocumentText(doc *model.StructuredDocument) []byte {
	var b strings.Builder
	b.WriteString(strings.ToUpper(doc.Title) + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, s := range doc.Sections {
		b.WriteString(s.Title + "\n")
		b.WriteString(strings.Repeat("-", 30) + "\n")
		for _, r := range s.Rows {
			fmt.Fprintf(&b, "%-20s %s\n", r.Label+":", r.Value)
		}
		b.WriteString("\n")
	}

	if doc.HasItems() {
		b.WriteString("ITEMS\n")
		b.WriteString(strings.Repeat("-", 30) + "\n")
		for i, it := range doc.Items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, it.Description)
			fmt.Fprintf(&b, "   Code: %s\n", it.Code)
			fmt.Fprintf(&b, "   Quantity: %s %s\n", FormatQty(it.Quantity), it.Unit)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Generated: %s\n", FormatDate(doc.GeneratedAt))
	return []byte(b.String())
}
