package engine

import (
	"fmt"
	"sort"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// Optimizer nests pattern pieces onto fabric sheets using shelf (next-fit)
// packing. Each shelf spans the full fabric width; pieces are laid left to
// right and a new shelf is opened below when the next piece does not fit.
type Optimizer struct {
	Settings model.LayoutSettings
}

func New(settings model.LayoutSettings) *Optimizer {
	return &Optimizer{Settings: settings}
}

// instance is one unit copy of a piece spec.
type instance struct {
	piece model.PieceSpec
	order int // index of the piece spec in the input list
	copy  int
}

// Optimize packs every requested piece onto as many sheets as needed.
// The result is deterministic for a given input.
func (o *Optimizer) Optimize(pieces []model.PieceSpec, fabric model.FabricSpec) (model.LayoutResult, error) {
	if err := validateLayoutInput(pieces, fabric); err != nil {
		return model.LayoutResult{}, err
	}

	instances := expandPieces(pieces)
	sheets := o.pack(instances, fabric)

	minRemnant := fabric.RemnantMinLength
	if minRemnant <= 0 {
		minRemnant = o.Settings.RemnantMinDimension
	}
	for i := range sheets {
		sheets[i].Remnants = model.DetectRemnants(sheets[i], fabric.SeamAllowance, minRemnant)
	}

	return o.summarize(sheets, fabric), nil
}

func validateLayoutInput(pieces []model.PieceSpec, fabric model.FabricSpec) error {
	if fabric.Width <= 0 {
		return errors.InvalidInput("fabric_width_cm", "fabric width must be positive")
	}
	if fabric.MaxSheetLength <= 0 {
		return errors.InvalidInput("max_sheet_length_cm", "max sheet length must be positive")
	}
	if fabric.SeamAllowance < 0 {
		return errors.InvalidInput("seam_allowance_cm", "seam allowance cannot be negative")
	}

	for i, p := range pieces {
		field := fmt.Sprintf("pieces[%d]", i)
		if p.Width <= 0 || p.Height <= 0 {
			return errors.InvalidInput(field, fmt.Sprintf("piece %q must have positive dimensions", p.Name))
		}
		if p.Quantity < 0 {
			return errors.InvalidInput(field, fmt.Sprintf("piece %q has a negative quantity", p.Name))
		}
		if p.Quantity == 0 {
			continue
		}
		// Rotation never rescues a piece wider than the fabric
		if p.Width > fabric.Width {
			return errors.InvalidInput(field, fmt.Sprintf(
				"piece %q is wider than the fabric (%.1fcm > %.1fcm)", p.Name, p.Width, fabric.Width))
		}
		if len(orientations(p, fabric)) == 0 {
			return errors.InvalidInput(field, fmt.Sprintf(
				"piece %q is longer than the maximum sheet length (%.1fcm)", p.Name, fabric.MaxSheetLength))
		}
	}
	return nil
}

// orientations returns the rotation flags under which a piece fits an empty
// sheet, unrotated first.
func orientations(p model.PieceSpec, fabric model.FabricSpec) []bool {
	var out []bool
	if p.Width <= fabric.Width && p.Height <= fabric.MaxSheetLength {
		out = append(out, false)
	}
	if !fabric.GrainRequired && p.Width != p.Height &&
		p.Height <= fabric.Width && p.Width <= fabric.MaxSheetLength {
		out = append(out, true)
	}
	return out
}

// expandPieces turns specs into unit instances ordered tallest first, then
// widest, then by input order.
func expandPieces(pieces []model.PieceSpec) []instance {
	var expanded []instance
	for i, p := range pieces {
		for c := 1; c <= p.Quantity; c++ {
			cp := p
			cp.Quantity = 1
			expanded = append(expanded, instance{piece: cp, order: i, copy: c})
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		a, b := expanded[i].piece, expanded[j].piece
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		return expanded[i].order < expanded[j].order
	})
	return expanded
}

// shelfState tracks the shelf currently being filled.
type shelfState struct {
	open   bool
	number int
	y      float64
	x      float64 // next free x, seam already added
	height float64
}

func dims(p model.PieceSpec, rotated bool) (w, h float64) {
	if rotated {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

func (o *Optimizer) pack(instances []instance, fabric model.FabricSpec) []model.SheetLayout {
	var sheets []model.SheetLayout
	if len(instances) == 0 {
		return sheets
	}

	seam := fabric.SeamAllowance
	cur := model.SheetLayout{SheetNumber: 1, Width: fabric.Width}
	var shelf shelfState

	place := func(in instance, rotated bool) {
		w, h := dims(in.piece, rotated)
		cur.Placements = append(cur.Placements, model.Placement{
			Piece:    in.piece,
			Instance: in.copy,
			Shelf:    shelf.number,
			X:        shelf.x,
			Y:        shelf.y,
			Rotated:  rotated,
		})
		shelf.x += w + seam
		if h > shelf.height {
			shelf.height = h
		}
	}

	for _, in := range instances {
		opts := orientations(in.piece, fabric)

		// Current shelf first
		if shelf.open {
			if rot, ok := o.bestOnShelf(in.piece, opts, shelf, fabric); ok {
				place(in, rot)
				continue
			}
			// Close the shelf
			shelf.open = false
			shelf.y += shelf.height + seam
		}

		// New shelf on the current sheet, or a new sheet when the length runs out
		rot, ok := bestNewShelf(in.piece, opts, shelf.y, fabric)
		if !ok {
			cur.Length = sheetLength(cur)
			cur.Shelves = shelf.number
			sheets = append(sheets, cur)
			cur = model.SheetLayout{SheetNumber: cur.SheetNumber + 1, Width: fabric.Width}
			shelf = shelfState{}
			rot, _ = bestNewShelf(in.piece, opts, 0, fabric)
		}
		shelf.open = true
		shelf.number++
		shelf.x = 0
		shelf.height = 0
		place(in, rot)
	}

	cur.Length = sheetLength(cur)
	cur.Shelves = shelf.number
	sheets = append(sheets, cur)
	return sheets
}

// bestOnShelf picks the orientation that fits the open shelf with the least
// growth in shelf height, then the least width left over.
func (o *Optimizer) bestOnShelf(p model.PieceSpec, opts []bool, shelf shelfState, fabric model.FabricSpec) (bool, bool) {
	found := false
	var best bool
	var bestGrowth, bestLeft float64
	for _, rot := range opts {
		w, h := dims(p, rot)
		if shelf.x+w > fabric.Width || shelf.y+h > fabric.MaxSheetLength {
			continue
		}
		growth := h - shelf.height
		if growth < 0 {
			growth = 0
		}
		left := fabric.Width - (shelf.x + w)
		if !found || growth < bestGrowth || (growth == bestGrowth && left < bestLeft) {
			found, best, bestGrowth, bestLeft = true, rot, growth, left
		}
	}
	return best, found
}

// bestNewShelf picks the orientation for the first piece of a shelf starting
// at y: lowest shelf height, then least width left over.
func bestNewShelf(p model.PieceSpec, opts []bool, y float64, fabric model.FabricSpec) (bool, bool) {
	found := false
	var best bool
	var bestH, bestLeft float64
	for _, rot := range opts {
		w, h := dims(p, rot)
		if w > fabric.Width || y+h > fabric.MaxSheetLength {
			continue
		}
		left := fabric.Width - w
		if !found || h < bestH || (h == bestH && left < bestLeft) {
			found, best, bestH, bestLeft = true, rot, h, left
		}
	}
	return best, found
}

// sheetLength is the length of fabric actually consumed by a sheet.
func sheetLength(sl model.SheetLayout) float64 {
	var length float64
	for _, p := range sl.Placements {
		if end := p.Y + p.PlacedHeight(); end > length {
			length = end
		}
	}
	return length
}

func (o *Optimizer) summarize(sheets []model.SheetLayout, fabric model.FabricSpec) model.LayoutResult {
	result := model.LayoutResult{Sheets: sheets}
	if result.Sheets == nil {
		result.Sheets = []model.SheetLayout{}
	}

	var remnants []model.Remnant
	for _, s := range sheets {
		result.TotalFabricNeededCM += s.Length
		remnants = append(remnants, s.Remnants...)
	}

	result.UtilizationPct = result.TotalUtilization()
	wasteArea := result.TotalWasteArea()
	costPerSqM := fabric.RatePerSqM(o.Settings.CostPerSqMeter).InexactFloat64()
	result.WasteAnalysis = model.WasteAnalysis{
		WasteAreaCM2:   wasteArea,
		CostOfWaste:    wasteArea / 10000.0 * costPerSqM,
		RemnantAreaCM2: model.TotalRemnantArea(remnants),
	}
	if len(sheets) > 0 {
		result.WasteAnalysis.WastePercentage = 100.0 - result.UtilizationPct
	}

	result.CuttingTimeEstimateMins = o.Settings.PieceHandlingMins*float64(result.TotalPieces()) +
		o.Settings.SheetSetupMins*float64(len(sheets))
	return result
}
