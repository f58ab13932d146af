package engine

import (
	"fmt"

	"github.com/piwi3910/FabriCut/internal/model"
)

// ComparisonScenario defines a named fabric setup to compare.
type ComparisonScenario struct {
	Name   string           `json:"name"`
	Fabric model.FabricSpec `json:"fabric"`
}

// ComparisonResult holds the layout and computed statistics for a single
// scenario. Error is set when the scenario cannot be laid out.
type ComparisonResult struct {
	Scenario        ComparisonScenario `json:"scenario"`
	Result          model.LayoutResult `json:"-"`
	SheetsUsed      int                `json:"sheets_used"`
	FabricNeededCM  float64            `json:"fabric_needed_cm"`
	UtilizationPct  float64            `json:"utilization_pct"`
	WastePercent    float64            `json:"waste_percent"`
	CostOfWaste     float64            `json:"cost_of_waste"`
	CuttingTimeMins float64            `json:"cutting_time_mins"`
	Error           string             `json:"error,omitempty"`
}

// CompareScenarios runs the optimizer for each scenario and returns the
// results in scenario order, for side-by-side what-if comparison.
func CompareScenarios(settings model.LayoutSettings, scenarios []ComparisonScenario, pieces []model.PieceSpec) []ComparisonResult {
	results := make([]ComparisonResult, 0, len(scenarios))
	opt := New(settings)

	for _, scenario := range scenarios {
		result, err := opt.Optimize(pieces, scenario.Fabric)
		if err != nil {
			results = append(results, ComparisonResult{Scenario: scenario, Error: err.Error()})
			continue
		}

		results = append(results, ComparisonResult{
			Scenario:        scenario,
			Result:          result,
			SheetsUsed:      len(result.Sheets),
			FabricNeededCM:  result.TotalFabricNeededCM,
			UtilizationPct:  result.UtilizationPct,
			WastePercent:    result.WasteAnalysis.WastePercentage,
			CostOfWaste:     result.WasteAnalysis.CostOfWaste,
			CuttingTimeMins: result.CuttingTimeEstimateMins,
		})
	}

	return results
}

// BuildDefaultScenarios generates what-if alternatives around the given
// fabric setup by varying the rotation policy and the seam allowance.
func BuildDefaultScenarios(base model.FabricSpec) []ComparisonScenario {
	scenarios := []ComparisonScenario{
		{
			Name:   "Current Settings",
			Fabric: base,
		},
	}

	// Scenario: flip the grain constraint
	alt := base
	alt.GrainRequired = !base.GrainRequired
	name := "Free Rotation"
	if alt.GrainRequired {
		name = "Grain Locked"
	}
	scenarios = append(scenarios, ComparisonScenario{Name: name, Fabric: alt})

	// Scenario: tighter seam allowance
	if base.SeamAllowance > 0.2 {
		tight := base
		tight.SeamAllowance = base.SeamAllowance * 0.5
		scenarios = append(scenarios, ComparisonScenario{
			Name:   fmt.Sprintf("Seam %.2fcm (half)", tight.SeamAllowance),
			Fabric: tight,
		})
	}

	// Scenario: longer sheets
	longer := base
	longer.MaxSheetLength = base.MaxSheetLength * 1.5
	scenarios = append(scenarios, ComparisonScenario{
		Name:   fmt.Sprintf("Sheet %.0fcm", longer.MaxSheetLength),
		Fabric: longer,
	})

	return scenarios
}
