package model

// LayoutSettings holds the calibration of the layout optimizer.
type LayoutSettings struct {
	PieceHandlingMins    float64 `json:"piece_handling_mins"`    // Minutes spent per cut piece
	SheetSetupMins       float64 `json:"sheet_setup_mins"`       // Minutes to spread and align one sheet
	CostPerSqMeter       float64 `json:"cost_per_sq_meter"`      // Default cost of fabric area, used for waste cost
	RemnantMinDimension  float64 `json:"remnant_min_dimension"`  // cm; smaller leftovers are waste
	AllowRotationDefault bool    `json:"allow_rotation_default"` // Rotation policy when the caller does not say
}

// LayPlanSettings calibrates the marker estimate.
type LayPlanSettings struct {
	AverageGarmentLengthCM float64 `json:"average_garment_length_cm"` // Marker length taken by one garment at reference width
	ReferenceMarkerWidthCM float64 `json:"reference_marker_width_cm"` // Marker width the garment length was measured at
	GarmentsPerMarker      int     `json:"garments_per_marker"`       // Pieces laid out on one marker
	ComplexSizeThreshold   int     `json:"complex_size_threshold"`    // Distinct sizes above this reduce efficiency
	ComplexityFactor       float64 `json:"complexity_factor"`         // Multiplier applied above the threshold
	LaySetupMins           float64 `json:"lay_setup_mins"`            // Fixed time to prepare a lay
	SpreadMinsPerPly       float64 `json:"spread_mins_per_ply"`       // Time to spread one ply
	CutMinsPerMeter        float64 `json:"cut_mins_per_meter"`        // Knife time per metre of marker
}

// CostSettings holds the money side of a plan.
type CostSettings struct {
	Currency          string  `json:"currency"`
	FabricCostPerSqM  float64 `json:"fabric_cost_per_sq_m"`
	LabourCostPerHour float64 `json:"labour_cost_per_hour"`
}

// PlanningSettings is the calibration profile loaded at startup.
type PlanningSettings struct {
	Layout  LayoutSettings  `json:"layout"`
	LayPlan LayPlanSettings `json:"lay_plan"`
	Costs   CostSettings    `json:"costs"`
}

// DefaultPlanningSettings returns a profile calibrated for woven tops on a
// standard 150cm spreading table.
func DefaultPlanningSettings() PlanningSettings {
	return PlanningSettings{
		Layout: LayoutSettings{
			PieceHandlingMins:   0.5,
			SheetSetupMins:      10,
			CostPerSqMeter:      4.5,
			RemnantMinDimension: DefaultRemnantMinDimension,
		},
		LayPlan: LayPlanSettings{
			AverageGarmentLengthCM: 75,
			ReferenceMarkerWidthCM: 150,
			GarmentsPerMarker:      6,
			ComplexSizeThreshold:   4,
			ComplexityFactor:       0.95,
			LaySetupMins:           15,
			SpreadMinsPerPly:       0.5,
			CutMinsPerMeter:        3,
		},
		Costs: CostSettings{
			Currency:          "USD",
			FabricCostPerSqM:  4.5,
			LabourCostPerHour: 12,
		},
	}
}

// Merge fills zero values of s from defaults so that partial profiles work.
func (s PlanningSettings) Merge(defaults PlanningSettings) PlanningSettings {
	if s.Layout.PieceHandlingMins == 0 {
		s.Layout.PieceHandlingMins = defaults.Layout.PieceHandlingMins
	}
	if s.Layout.SheetSetupMins == 0 {
		s.Layout.SheetSetupMins = defaults.Layout.SheetSetupMins
	}
	if s.Layout.CostPerSqMeter == 0 {
		s.Layout.CostPerSqMeter = defaults.Layout.CostPerSqMeter
	}
	if s.Layout.RemnantMinDimension == 0 {
		s.Layout.RemnantMinDimension = defaults.Layout.RemnantMinDimension
	}
	if s.LayPlan.AverageGarmentLengthCM == 0 {
		s.LayPlan.AverageGarmentLengthCM = defaults.LayPlan.AverageGarmentLengthCM
	}
	if s.LayPlan.ReferenceMarkerWidthCM == 0 {
		s.LayPlan.ReferenceMarkerWidthCM = defaults.LayPlan.ReferenceMarkerWidthCM
	}
	if s.LayPlan.GarmentsPerMarker == 0 {
		s.LayPlan.GarmentsPerMarker = defaults.LayPlan.GarmentsPerMarker
	}
	if s.LayPlan.ComplexSizeThreshold == 0 {
		s.LayPlan.ComplexSizeThreshold = defaults.LayPlan.ComplexSizeThreshold
	}
	if s.LayPlan.ComplexityFactor == 0 {
		s.LayPlan.ComplexityFactor = defaults.LayPlan.ComplexityFactor
	}
	if s.LayPlan.LaySetupMins == 0 {
		s.LayPlan.LaySetupMins = defaults.LayPlan.LaySetupMins
	}
	if s.LayPlan.SpreadMinsPerPly == 0 {
		s.LayPlan.SpreadMinsPerPly = defaults.LayPlan.SpreadMinsPerPly
	}
	if s.LayPlan.CutMinsPerMeter == 0 {
		s.LayPlan.CutMinsPerMeter = defaults.LayPlan.CutMinsPerMeter
	}
	if s.Costs.Currency == "" {
		s.Costs.Currency = defaults.Costs.Currency
	}
	if s.Costs.FabricCostPerSqM == 0 {
		s.Costs.FabricCostPerSqM = defaults.Costs.FabricCostPerSqM
	}
	if s.Costs.LabourCostPerHour == 0 {
		s.Costs.LabourCostPerHour = defaults.Costs.LabourCostPerHour
	}
	return s
}
