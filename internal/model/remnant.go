package model

import "sort"

// Remnant represents a usable rectangular piece of fabric left over after
// cutting a sheet.
type Remnant struct {
	SheetNumber int     `json:"sheet_number"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width_cm"`
	Length      float64 `json:"length_cm"`
}

// Area returns the area of the remnant in square cm.
func (r Remnant) Area() float64 {
	return r.Width * r.Length
}

// DefaultRemnantMinDimension is the smallest width or length (cm) for a
// leftover to be worth keeping.
const DefaultRemnantMinDimension = 20.0

// DetectRemnants looks at every shelf of a sheet and reports the strip to the
// right of its last piece when it is at least minDim in both directions.
// Shelves are identified from the placements; seam is the allowance kept
// between the last piece and the remnant.
func DetectRemnants(sl SheetLayout, seam, minDim float64) []Remnant {
	if minDim <= 0 {
		minDim = DefaultRemnantMinDimension
	}

	type shelf struct {
		y      float64
		right  float64
		height float64
	}
	shelves := make(map[int]*shelf)
	for _, p := range sl.Placements {
		s, ok := shelves[p.Shelf]
		if !ok {
			s = &shelf{y: p.Y}
			shelves[p.Shelf] = s
		}
		if r := p.X + p.PlacedWidth(); r > s.right {
			s.right = r
		}
		if h := p.PlacedHeight(); h > s.height {
			s.height = h
		}
	}

	var remnants []Remnant
	for _, s := range shelves {
		x := s.right + seam
		w := sl.Width - x
		if w < minDim || s.height < minDim {
			continue
		}
		remnants = append(remnants, Remnant{
			SheetNumber: sl.SheetNumber,
			X:           x,
			Y:           s.y,
			Width:       w,
			Length:      s.height,
		})
	}

	// Largest first, then position for a stable order
	sort.Slice(remnants, func(i, j int) bool {
		if remnants[i].Area() != remnants[j].Area() {
			return remnants[i].Area() > remnants[j].Area()
		}
		return remnants[i].Y < remnants[j].Y
	})
	return remnants
}

// TotalRemnantArea returns the total area of all remnants in square cm.
func TotalRemnantArea(remnants []Remnant) float64 {
	var total float64
	for _, r := range remnants {
		total += r.Area()
	}
	return total
}
