package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PieceSpec represents a pattern piece that has to be cut from fabric.
// Dimensions are the piece's bounding box in centimetres.
type PieceSpec struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Size     string  `json:"size,omitempty"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width_cm" validate:"gt=0"`
	Height   float64 `json:"height_cm" validate:"gt=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

func NewPieceSpec(name string, w, h float64, qty int) PieceSpec {
	return PieceSpec{
		ID:       uuid.New().String()[:8],
		Name:     name,
		Width:    w,
		Height:   h,
		Quantity: qty,
	}
}

// Area returns the area of a single instance in square cm.
func (p PieceSpec) Area() float64 {
	return p.Width * p.Height
}

// FabricSpec describes the fabric a layout is nested onto.
type FabricSpec struct {
	Type             string  `json:"fabric_type"`
	Width            float64 `json:"fabric_width_cm" validate:"gt=0"`
	MaxSheetLength   float64 `json:"max_sheet_length_cm" validate:"gt=0"`
	SeamAllowance    float64 `json:"seam_allowance_cm" validate:"gte=0"`
	GrainRequired    bool    `json:"grain_direction_required"`
	CostPerSqMeter   float64 `json:"cost_per_sq_meter,omitempty" validate:"gte=0"`
	CostPerMeter     float64 `json:"cost_per_meter,omitempty" validate:"gte=0"`
	RemnantMinLength float64 `json:"remnant_min_cm,omitempty" validate:"gte=0"`
}

// RatePerSqM resolves the fabric price per square metre: the area price
// when set, else the per-metre price spread over the fabric width, else
// fallback.
func (f FabricSpec) RatePerSqM(fallback float64) decimal.Decimal {
	switch {
	case f.CostPerSqMeter > 0:
		return decimal.NewFromFloat(f.CostPerSqMeter)
	case f.CostPerMeter > 0 && f.Width > 0:
		return decimal.NewFromFloat(f.CostPerMeter).Div(decimal.NewFromFloat(f.Width).Div(decimal.NewFromInt(100)))
	default:
		return decimal.NewFromFloat(fallback)
	}
}

// Placement represents a single piece instance placed on a sheet.
type Placement struct {
	Piece    PieceSpec `json:"piece"`
	Instance int       `json:"instance"` // 1-based copy number within the piece spec
	Shelf    int       `json:"shelf"`    // 1-based shelf index on the sheet
	X        float64   `json:"x"`        // cm from the left selvedge
	Y        float64   `json:"y"`        // cm from the start of the sheet
	Rotated  bool      `json:"rotated"`  // Whether the piece was turned 90°
}

// PlacedWidth returns the effective width considering rotation.
func (p Placement) PlacedWidth() float64 {
	if p.Rotated {
		return p.Piece.Height
	}
	return p.Piece.Width
}

// PlacedHeight returns the effective height considering rotation.
func (p Placement) PlacedHeight() float64 {
	if p.Rotated {
		return p.Piece.Width
	}
	return p.Piece.Height
}

// SheetLayout represents one fabric sheet with its placed pieces.
type SheetLayout struct {
	SheetNumber int         `json:"sheet_number"`
	Width       float64     `json:"width_cm"`
	Length      float64     `json:"length_cm"`
	Shelves     int         `json:"shelves"`
	Placements  []Placement `json:"placements"`
	Remnants    []Remnant   `json:"remnants,omitempty"`
}

// PiecesCount returns the number of placed piece instances.
func (sl SheetLayout) PiecesCount() int {
	return len(sl.Placements)
}

// UsedArea returns the total area covered by placed pieces.
func (sl SheetLayout) UsedArea() float64 {
	var total float64
	for _, p := range sl.Placements {
		total += p.PlacedWidth() * p.PlacedHeight()
	}
	return total
}

// TotalArea returns the sheet area.
func (sl SheetLayout) TotalArea() float64 {
	return sl.Width * sl.Length
}

// WasteArea returns the unused area of the sheet in square cm.
func (sl SheetLayout) WasteArea() float64 {
	w := sl.TotalArea() - sl.UsedArea()
	if w < 0 {
		return 0
	}
	return w
}

// Utilization returns the usage percentage.
func (sl SheetLayout) Utilization() float64 {
	ta := sl.TotalArea()
	if ta == 0 {
		return 0
	}
	return (sl.UsedArea() / ta) * 100.0
}

// WasteAnalysis summarises the fabric that is not covered by pieces.
type WasteAnalysis struct {
	WasteAreaCM2    float64 `json:"waste_area_cm2"`
	WastePercentage float64 `json:"waste_percentage"`
	CostOfWaste     float64 `json:"cost_of_waste"`
	RemnantAreaCM2  float64 `json:"remnant_area_cm2"`
}

// LayoutResult holds the full nesting solution.
type LayoutResult struct {
	Sheets                  []SheetLayout `json:"sheets"`
	TotalFabricNeededCM     float64       `json:"total_fabric_needed_cm"`
	UtilizationPct          float64       `json:"utilization_pct"`
	WasteAnalysis           WasteAnalysis `json:"waste_analysis"`
	CuttingTimeEstimateMins float64       `json:"cutting_time_estimate_mins"`
}

// TotalPieces returns the number of placed pieces over all sheets.
func (lr LayoutResult) TotalPieces() int {
	var n int
	for _, s := range lr.Sheets {
		n += s.PiecesCount()
	}
	return n
}

// TotalUtilization returns overall fabric usage percentage, weighted by sheet area.
func (lr LayoutResult) TotalUtilization() float64 {
	var usedArea, totalArea float64
	for _, s := range lr.Sheets {
		usedArea += s.UsedArea()
		totalArea += s.TotalArea()
	}
	if totalArea == 0 {
		return 0
	}
	return (usedArea / totalArea) * 100.0
}

// TotalWasteArea returns the aggregate waste area in square cm.
func (lr LayoutResult) TotalWasteArea() float64 {
	var total float64
	for _, s := range lr.Sheets {
		total += s.WasteArea()
	}
	return total
}

// TotalQuantity sums the requested quantities of a piece list.
func TotalQuantity(pieces []PieceSpec) int {
	var n int
	for _, p := range pieces {
		n += p.Quantity
	}
	return n
}
