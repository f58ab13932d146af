// Package export renders cutting plans for the cutting room: marker PDFs,
// plotter DXF files, plan workbooks and QR-coded bundle tickets.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/piwi3910/FabriCut/internal/model"
)

// PlanDocument is everything an export needs to know about one plan.
type PlanDocument struct {
	Title  string
	Order  string
	Fabric model.FabricSpec
	Layout model.LayoutResult
	Cost   *model.PlanCost
}

// FromPlan rebuilds a document from a stored plan and its sheets.
func FromPlan(plan *model.CuttingPlan) PlanDocument {
	doc := PlanDocument{
		Title:  plan.Name,
		Order:  plan.OrderID,
		Fabric: plan.Fabric,
		Layout: model.LayoutResult{
			TotalFabricNeededCM:     plan.FabricLengthCM,
			UtilizationPct:          plan.UtilizationPct,
			CuttingTimeEstimateMins: plan.CuttingTimeMins,
			WasteAnalysis: model.WasteAnalysis{
				WasteAreaCM2:    plan.WasteAreaCM2,
				WastePercentage: plan.WastePct,
			},
		},
	}
	if !plan.Cost.Total.IsZero() {
		cost := plan.Cost
		doc.Cost = &cost
	}
	for _, s := range plan.Sheets {
		doc.Layout.Sheets = append(doc.Layout.Sheets, s.Layout)
	}
	return doc
}

// FromLayout wraps an optimizer result that was never persisted.
func FromLayout(title string, fabric model.FabricSpec, result model.LayoutResult) PlanDocument {
	return PlanDocument{Title: title, Fabric: fabric, Layout: result}
}

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
