package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// LayPlanEstimator produces the marker estimate for a lay plan.
type LayPlanEstimator interface {
	Estimate(batch model.FabricBatch, sizeBreakdown map[string]int, cfg model.LayConfiguration) (model.LayPlanEstimate, error)
}

// MarkerEstimator is a calibrated estimate of marker length and efficiency.
// It does not nest pattern pieces; it scales an average garment length by the
// marker width and assumes a fixed number of garments per marker. A real
// nesting solver can be plugged in behind LayPlanEstimator instead.
type MarkerEstimator struct {
	Settings model.LayPlanSettings
}

func NewMarkerEstimator(settings model.LayPlanSettings) *MarkerEstimator {
	return &MarkerEstimator{Settings: settings}
}

// Estimate computes fabric need, efficiency and cutting time for a lay.
func (m *MarkerEstimator) Estimate(batch model.FabricBatch, sizeBreakdown map[string]int, cfg model.LayConfiguration) (model.LayPlanEstimate, error) {
	available := batch.MetersAvailable()
	if batch.WidthCM <= 0 {
		return model.LayPlanEstimate{}, errors.InvalidInput("fabric_batch.width_cm", "fabric width must be positive")
	}
	if available <= 0 {
		return model.LayPlanEstimate{}, errors.InvalidInput("fabric_batch.meters", "fabric batch has no metres available")
	}
	if cfg.TableWidthCM <= 0 {
		return model.LayPlanEstimate{}, errors.InvalidInput("lay_configuration.table_width_cm", "table width must be positive")
	}
	if cfg.MarkerEfficiencyTarget <= 0 || cfg.MarkerEfficiencyTarget > 1 {
		return model.LayPlanEstimate{}, errors.InvalidInput("lay_configuration.marker_efficiency_target", "efficiency target must be in (0, 1]")
	}

	total, sizes, err := countSizes(sizeBreakdown)
	if err != nil {
		return model.LayPlanEstimate{}, err
	}

	s := m.Settings
	markerWidth := math.Min(batch.WidthCM, cfg.TableWidthCM)

	garments := s.GarmentsPerMarker
	if garments <= 0 || garments > total {
		garments = total
	}
	refWidth := s.ReferenceMarkerWidthCM
	if refWidth <= 0 {
		refWidth = markerWidth
	}
	markerLength := float64(garments) * s.AverageGarmentLengthCM * (refWidth / markerWidth) / 100.0

	plies := float64(total) / float64(garments)
	required := markerLength * plies

	lays := 1.0
	if cfg.MaxLayHeight > 0 {
		lays = math.Ceil(plies / float64(cfg.MaxLayHeight))
	}

	complexity := 1.0
	if s.ComplexSizeThreshold > 0 && sizes > s.ComplexSizeThreshold {
		complexity = s.ComplexityFactor
	}
	efficiency := cfg.MarkerEfficiencyTarget * complexity
	utilization := math.Min(required/available, 1.0)

	cutting := lays*(s.LaySetupMins+markerLength*s.CutMinsPerMeter) + plies*s.SpreadMinsPerPly

	return model.LayPlanEstimate{
		MarkerWidthCM:        markerWidth,
		MarkerLengthM:        round(markerLength, 3),
		Plies:                round(plies, 2),
		EstimatedEfficiency:  round(efficiency, 4),
		FabricUtilization:    round(utilization, 4),
		FabricMetersRequired: round(required, 2),
		WastePercentage:      round((1-efficiency)*100, 2),
		CuttingTimeMinutes:   round(cutting, 1),
		RiskInputs: model.Signals{
			"efficiency":       round(efficiency, 4),
			"utilization":      round(utilization, 4),
			"meters_required":  round(required, 2),
			"meters_available": available,
			"size_count":       sizes,
			"pieces":           total,
			"plies":            round(plies, 2),
			"quality_grade":    batch.QualityGrade,
		},
	}, nil
}

// countSizes validates a size breakdown and returns the total quantity and
// the number of sizes with a positive quantity.
func countSizes(sizeBreakdown map[string]int) (int, int, error) {
	if len(sizeBreakdown) == 0 {
		return 0, 0, errors.InvalidInput("size_breakdown", "size breakdown is required")
	}
	keys := make([]string, 0, len(sizeBreakdown))
	for k := range sizeBreakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var total, sizes int
	for _, k := range keys {
		q := sizeBreakdown[k]
		if k == "" {
			return 0, 0, errors.InvalidInput("size_breakdown", "size name cannot be empty")
		}
		if q < 0 {
			return 0, 0, errors.InvalidInput("size_breakdown", fmt.Sprintf("size %s has a negative quantity", k))
		}
		if q > 0 {
			sizes++
		}
		total += q
	}
	if total == 0 {
		return 0, 0, errors.InvalidInput("size_breakdown", "size breakdown has no pieces")
	}
	return total, sizes, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
