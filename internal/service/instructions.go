package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/risk"
)

var methodNotes = map[string]string{
	risk.MethodManual:        "Cut with shears one ply at a time; check each piece against the pattern",
	risk.MethodStraightKnife: "Keep the straight knife vertical and cut shelf by shelf from the selvedge",
	risk.MethodBandKnife:     "Block out shelves with the straight knife, then finish curves on the band knife",
	risk.MethodAutomatic:     "Load the marker file on the cutter and verify the origin at the top-left corner",
	risk.MethodDie:           "Align the die to the piece origin; use the press for each piece",
	risk.MethodLaser:         "Check extraction and run a test cut on a remnant before the sheet",
}

// buildInstructions turns a sheet layout into the operator's cutting list.
// Steps follow the shelves from the start of the sheet, left to right.
func buildInstructions(sheet *model.CuttingSheet, fabric model.FabricSpec, operator, method string, now time.Time) *model.CuttingInstructions {
	placements := make([]model.Placement, len(sheet.Layout.Placements))
	copy(placements, sheet.Layout.Placements)
	sort.SliceStable(placements, func(i, j int) bool {
		if placements[i].Shelf != placements[j].Shelf {
			return placements[i].Shelf < placements[j].Shelf
		}
		return placements[i].X < placements[j].X
	})

	steps := make([]model.InstructionStep, 0, len(placements))
	rotated := 0
	for i, p := range placements {
		if p.Rotated {
			rotated++
		}
		steps = append(steps, model.InstructionStep{
			Sequence:  i + 1,
			Shelf:     p.Shelf,
			PieceName: p.Piece.Name,
			Size:      p.Piece.Size,
			X:         p.X,
			Y:         p.Y,
			WidthCM:   p.PlacedWidth(),
			HeightCM:  p.PlacedHeight(),
			Rotated:   p.Rotated,
		})
	}

	var notes []string
	if fabric.Type != "" {
		notes = append(notes, fmt.Sprintf("Fabric: %s, %.1fcm wide; spread %.1fcm", fabric.Type, sheet.WidthCM, sheet.LengthCM))
	} else {
		notes = append(notes, fmt.Sprintf("Fabric %.1fcm wide; spread %.1fcm", sheet.WidthCM, sheet.LengthCM))
	}
	switch {
	case fabric.GrainRequired:
		notes = append(notes, "Grain line runs along the sheet length; no piece is rotated")
	case rotated > 0:
		notes = append(notes, fmt.Sprintf("%d pieces are rotated 90 degrees; check grain marks before cutting", rotated))
	}
	if fabric.SeamAllowance > 0 {
		notes = append(notes, fmt.Sprintf("%.1fcm gap is left between neighbouring pieces", fabric.SeamAllowance))
	}
	if n, ok := methodNotes[strings.ToUpper(method)]; ok {
		notes = append(notes, n)
	}
	for _, r := range sheet.Layout.Remnants {
		notes = append(notes, fmt.Sprintf("Keep remnant %.0fx%.0fcm at (%.1f, %.1f) for reuse", r.Width, r.Length, r.X, r.Y))
	}

	return &model.CuttingInstructions{
		SheetNumber: sheet.SheetNumber,
		Operator:    operator,
		Method:      strings.ToUpper(method),
		Steps:       steps,
		Notes:       notes,
		GeneratedAt: now,
	}
}
