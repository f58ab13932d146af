package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piwi3910/FabriCut/internal/model"
)

func fourPanelLayout() model.LayoutResult {
	sheet := model.SheetLayout{SheetNumber: 1, Width: 150, Length: 100.5, Shelves: 2}
	for i, pos := range [][2]float64{{0, 0}, {70.5, 0}, {0, 50.5}, {70.5, 50.5}} {
		sheet.Placements = append(sheet.Placements, model.Placement{
			Piece:    model.PieceSpec{Name: "Front", Width: 70, Height: 50, Quantity: 1},
			Instance: i + 1,
			Shelf:    i/2 + 1,
			X:        pos[0],
			Y:        pos[1],
		})
	}
	return model.LayoutResult{
		Sheets:                  []model.SheetLayout{sheet},
		TotalFabricNeededCM:     100.5,
		WasteAnalysis:           model.WasteAnalysis{WasteAreaCM2: sheet.WasteArea()},
		CuttingTimeEstimateMins: 12,
	}
}

func TestPlanCost(t *testing.T) {
	costs := model.CostSettings{Currency: "USD", FabricCostPerSqM: 4.5, LabourCostPerHour: 12}

	c := planCost(fourPanelLayout(), model.FabricSpec{Width: 150}, costs)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, "6.3", c.FabricCost.String())
	assert.Equal(t, "0.48", c.WasteCost.String())
	assert.Equal(t, "2.4", c.LabourCost.String())
	assert.Equal(t, "9.18", c.Total.String())
}
