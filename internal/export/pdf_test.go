package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/model"
)

func shirtFabric() model.FabricSpec {
	return model.FabricSpec{
		Type:           "cotton poplin",
		Width:          150,
		MaxSheetLength: 300,
		SeamAllowance:  0.5,
		GrainRequired:  true,
	}
}

// buildTestDocument nests a small shirt order into a real layout.
func buildTestDocument(t *testing.T) PlanDocument {
	t.Helper()
	pieces := []model.PieceSpec{
		{ID: "p1", Name: "Front", Size: "M", Width: 70, Height: 50, Quantity: 4},
		{ID: "p2", Name: "Sleeve", Size: "M", Width: 35, Height: 60, Quantity: 4},
		{ID: "p3", Name: "Collar", Size: "M", Width: 45, Height: 9, Quantity: 2},
	}
	result, err := engine.New(model.DefaultPlanningSettings().Layout).Optimize(pieces, shirtFabric())
	require.NoError(t, err)
	require.NotEmpty(t, result.Sheets)
	return FromLayout("PO-4512 shirts", shirtFabric(), result)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, buildTestDocument(t)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")), "output is not a PDF")
	assert.Greater(t, buf.Len(), 500)
}

func TestExportPDF_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.pdf")

	doc := buildTestDocument(t)
	doc.Cost = &model.PlanCost{
		Currency:   "USD",
		FabricCost: decimal.RequireFromString("6.30"),
		WasteCost:  decimal.RequireFromString("0.48"),
		LabourCost: decimal.RequireFromString("2.40"),
		Total:      decimal.RequireFromString("9.18"),
	}
	require.NoError(t, ExportPDF(path, doc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(500))
}

func TestWritePDF_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDF(&buf, PlanDocument{Title: "empty"})
	assert.Error(t, err)
}

func TestWritePDF_ManyPieces(t *testing.T) {
	// More distinct pieces than colors, and more sheets than fit one summary page
	var pieces []model.PieceSpec
	for i := 0; i < 20; i++ {
		pieces = append(pieces, model.PieceSpec{
			ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Piece %d", i+1), Width: 40, Height: 30, Quantity: 30,
		})
	}
	fabric := shirtFabric()
	fabric.GrainRequired = false
	result, err := engine.New(model.DefaultPlanningSettings().Layout).Optimize(pieces, fabric)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, FromLayout("bulk", fabric, result)))
	assert.Greater(t, buf.Len(), 1000)
}

func TestFromPlan(t *testing.T) {
	doc := buildTestDocument(t)
	plan := &model.CuttingPlan{
		ID:             "plan-1",
		OrderID:        "order-1",
		Name:           "Plan A",
		Fabric:         shirtFabric(),
		FabricLengthCM: doc.Layout.TotalFabricNeededCM,
		UtilizationPct: doc.Layout.UtilizationPct,
		WastePct:       doc.Layout.WasteAnalysis.WastePercentage,
		CreatedAt:      time.Now(),
	}
	for _, s := range doc.Layout.Sheets {
		plan.Sheets = append(plan.Sheets, &model.CuttingSheet{SheetNumber: s.SheetNumber, Layout: s})
	}

	got := FromPlan(plan)
	assert.Equal(t, "Plan A", got.Title)
	assert.Equal(t, "order-1", got.Order)
	assert.Nil(t, got.Cost)
	assert.Len(t, got.Layout.Sheets, len(doc.Layout.Sheets))
	assert.Equal(t, doc.Layout.TotalPieces(), got.Layout.TotalPieces())
	assert.InDelta(t, doc.Layout.UtilizationPct, got.Layout.UtilizationPct, 1e-9)
}

func TestColorIndex_SharedByName(t *testing.T) {
	doc := buildTestDocument(t)
	colors := colorIndex(doc.Layout)

	assert.Len(t, colors, 3)
	assert.NotEqual(t, colors["Front"], colors["Sleeve"])
}

func TestLabelFontSize(t *testing.T) {
	tests := []struct {
		w, h float64
		want float64
	}{
		{50, 50, 8},
		{30, 25, 7},
		{10, 15, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labelFontSize(tt.w, tt.h), "labelFontSize(%v, %v)", tt.w, tt.h)
	}
}
