package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/model"
)

func TestBuildDefaultScenarios(t *testing.T) {
	scenarios := BuildDefaultScenarios(fabric(150, 1000, 0.5, true))
	require.Len(t, scenarios, 4)
	assert.Equal(t, "Current Settings", scenarios[0].Name)
	assert.Equal(t, "Free Rotation", scenarios[1].Name)
	assert.False(t, scenarios[1].Fabric.GrainRequired)
	assert.Equal(t, 0.25, scenarios[2].Fabric.SeamAllowance)
	assert.Equal(t, 1500.0, scenarios[3].Fabric.MaxSheetLength)

	// No seam scenario when the allowance is already tight
	scenarios = BuildDefaultScenarios(fabric(150, 1000, 0, false))
	require.Len(t, scenarios, 3)
	assert.Equal(t, "Grain Locked", scenarios[1].Name)
}

func TestCompareScenarios(t *testing.T) {
	pieces := []model.PieceSpec{
		model.NewPieceSpec("front", 50, 70, 20),
		model.NewPieceSpec("sleeve", 30, 45, 40),
	}
	base := fabric(150, 1000, 0.5, true)

	results := CompareScenarios(defaultTestSettings(), BuildDefaultScenarios(base), pieces)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Empty(t, r.Error)
		assert.Equal(t, 60, r.Result.TotalPieces())
		assert.Greater(t, r.UtilizationPct, 0.0)
		assert.InDelta(t, 100.0-r.UtilizationPct, r.WastePercent, 1e-9)
	}
}

func TestCompareScenarios_ReportsInvalidScenario(t *testing.T) {
	pieces := []model.PieceSpec{model.NewPieceSpec("front", 50, 70, 1)}
	scenarios := []ComparisonScenario{
		{Name: "ok", Fabric: fabric(150, 1000, 0, true)},
		{Name: "too narrow", Fabric: fabric(40, 1000, 0, true)},
	}

	results := CompareScenarios(defaultTestSettings(), scenarios, pieces)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, "wider than the fabric")
}
