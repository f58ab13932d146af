package model

import "math"

// PurchaseEstimate holds the result of a fabric buying calculation.
type PurchaseEstimate struct {
	TotalPieceArea    float64 `json:"total_piece_area"`    // Total area of all pieces incl. seam allowance (sq cm)
	FabricWidth       float64 `json:"fabric_width"`        // Usable fabric width (cm)
	MetersExact       float64 `json:"meters_exact"`        // Length if pieces tiled perfectly
	MetersWithWaste   float64 `json:"meters_with_waste"`   // Recommended length including waste factor
	RollLength        float64 `json:"roll_length"`         // Metres per roll (0 if sold by the metre)
	RollsNeeded       int     `json:"rolls_needed"`        // Rolls to order
	WastePercent      float64 `json:"waste_percent"`       // Waste factor applied (e.g. 15 for 15%)
	EstimatedCost     float64 `json:"estimated_cost"`      // Total cost if pricing available
	PricePerMeter     float64 `json:"price_per_meter"`     // Price used for estimation
	SeamAllowance     float64 `json:"seam_allowance"`      // Seam allowance used in calculation
}

// CalculatePurchaseEstimate computes how much fabric to buy for a piece list
// without running the optimizer. It accounts for seam allowance and an extra
// waste percentage factor.
func CalculatePurchaseEstimate(pieces []PieceSpec, fabricWidth, seam, wastePercent, pricePerMeter, rollLength float64) PurchaseEstimate {
	var totalArea float64
	for _, p := range pieces {
		w := p.Width + seam
		h := p.Height + seam
		totalArea += w * h * float64(p.Quantity)
	}

	est := PurchaseEstimate{
		TotalPieceArea: totalArea,
		FabricWidth:    fabricWidth,
		WastePercent:   wastePercent,
		PricePerMeter:  pricePerMeter,
		SeamAllowance:  seam,
		RollLength:     rollLength,
	}
	if fabricWidth <= 0 {
		return est
	}

	// cm of length at full width, converted to metres
	est.MetersExact = totalArea / fabricWidth / 100.0
	wasteFactor := 1.0 + (wastePercent / 100.0)
	// Round up to the next 10cm, which is how cutting rooms order
	est.MetersWithWaste = math.Ceil(est.MetersExact*wasteFactor*10) / 10
	if est.MetersWithWaste < est.MetersExact {
		est.MetersWithWaste = est.MetersExact
	}
	if rollLength > 0 {
		est.RollsNeeded = int(math.Ceil(est.MetersWithWaste / rollLength))
	}
	est.EstimatedCost = est.MetersWithWaste * pricePerMeter
	return est
}
