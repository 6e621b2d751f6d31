package templates

import (
	"fmt"
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

const (
	SummaryTitle     = "Pallet Content Summary"
	SectionBasicInfo = "Basic Info"
	SectionWeights   = "Weights"
)

func palletSummary(p model.Payload, generatedAt time.Time) *model.StructuredDocument {
	palletID, _ := p.String(palletIDField.Keys...)

	basic := model.Section{Title: SectionBasicInfo, Rows: []model.Row{
		{Label: "Pallet ID", Value: palletID},
		{Label: "Location", Value: p.StringOr("N/A", "location", "locationId")},
	}}
	optional := []struct {
		label string
		keys  []string
	}{
		{"Status", []string{"status", "durum"}},
		{"Warehouse", []string{"warehouse", "depo_adi", "depo"}},
		{"Order Date", []string{"orderDate", "order_date", "siparis_tarihi"}},
		{"Receiving Company", []string{"receivingCompany", "receiving_company", "teslim_firma"}},
	}
	for _, o := range optional {
		if v, ok := p.String(o.keys...); ok {
			basic.Rows = append(basic.Rows, model.Row{Label: o.label, Value: v})
		}
	}

	weights := model.Section{Title: SectionWeights, Rows: []model.Row{
		{Label: "Gross Weight (kg)", Value: fmt.Sprintf("%.2f", p.Float("grossWeight", "gross_weight", "brut_kg"))},
		{Label: "Net Weight (kg)", Value: fmt.Sprintf("%.2f", p.Float("netWeight", "net_weight", "net_kg"))},
	}}

	doc := &model.StructuredDocument{
		Title:       SummaryTitle,
		Sections:    []model.Section{basic, weights},
		GeneratedAt: generatedAt,
	}

	if list, ok := p.List("items", "materials"); ok && len(list) > 0 {
		doc.Items = make([]model.Item, 0, len(list))
		for _, entry := range list {
			doc.Items = append(doc.Items, model.Item{
				Code:        entry.StringOr("N/A", "code", "material_code", "product_code"),
				Description: entry.StringOr("Unknown Material", "description", "product_name", "name"),
				Quantity:    entry.Float("quantity"),
				Unit:        entry.StringOr("", "unit"),
			})
		}
	}
	return doc
}
