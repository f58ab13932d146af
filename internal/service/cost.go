package service

import (
	"github.com/shopspring/decimal"

	"github.com/piwi3910/FabriCut/internal/model"
)

var (
	sqCMPerSqM = decimal.NewFromInt(10000)
	minsPerH   = decimal.NewFromInt(60)
)

// planCost splits the money spent on a layout into the fabric under the
// pieces, the wasted fabric and the cutting labour. Amounts are rounded to
// cents; the total is the sum of the rounded parts.
func planCost(result model.LayoutResult, fabric model.FabricSpec, costs model.CostSettings) model.PlanCost {
	rate := fabric.RatePerSqM(costs.FabricCostPerSqM)

	var used float64
	for _, s := range result.Sheets {
		used += s.UsedArea()
	}
	usedSqM := decimal.NewFromFloat(used).Div(sqCMPerSqM)
	wasteSqM := decimal.NewFromFloat(result.WasteAnalysis.WasteAreaCM2).Div(sqCMPerSqM)
	hours := decimal.NewFromFloat(result.CuttingTimeEstimateMins).Div(minsPerH)

	c := model.PlanCost{
		Currency:   costs.Currency,
		FabricCost: usedSqM.Mul(rate).Round(2),
		WasteCost:  wasteSqM.Mul(rate).Round(2),
		LabourCost: hours.Mul(decimal.NewFromFloat(costs.LabourCostPerHour)).Round(2),
	}
	c.Total = c.FabricCost.Add(c.WasteCost).Add(c.LabourCost)
	return c
}
