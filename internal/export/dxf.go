package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/drawing"

	"github.com/piwi3910/FabriCut/internal/model"
)

// Marker DXF layers.
const (
	LayerFabric   = "FABRIC"
	LayerPieces   = "PIECES"
	LayerLabels   = "LABELS"
	LayerRemnants = "REMNANTS"
)

// markerUnits converts centimetres to the millimetres plotters expect.
const markerUnits = 10.0

// WriteMarkerDXF draws one sheet as a plotter marker: the fabric outline,
// every piece as a closed rectangle with its name, and reusable remnants.
// The x axis runs along the fabric length.
func WriteMarkerDXF(w io.Writer, sheet model.SheetLayout) error {
	if len(sheet.Placements) == 0 {
		return fmt.Errorf("sheet %d has no pieces", sheet.SheetNumber)
	}

	d := dxf.NewDrawing()
	layers := []struct {
		name  string
		color color.ColorNumber
	}{
		{LayerFabric, color.White},
		{LayerRemnants, color.Cyan},
		{LayerLabels, color.Yellow},
		{LayerPieces, color.Red},
	}
	for _, l := range layers {
		if _, err := d.AddLayer(l.name, l.color, dxf.DefaultLineType, false); err != nil {
			return fmt.Errorf("add layer %s: %w", l.name, err)
		}
	}

	if err := d.ChangeLayer(LayerFabric); err != nil {
		return err
	}
	if err := rect(d, 0, 0, sheet.Length, sheet.Width); err != nil {
		return err
	}

	if err := d.ChangeLayer(LayerRemnants); err != nil {
		return err
	}
	for _, r := range sheet.Remnants {
		if err := rect(d, r.Y, r.X, r.Length, r.Width); err != nil {
			return err
		}
	}

	for _, p := range sheet.Placements {
		length, width := p.PlacedHeight(), p.PlacedWidth()
		if err := d.ChangeLayer(LayerPieces); err != nil {
			return err
		}
		if err := rect(d, p.Y, p.X, length, width); err != nil {
			return err
		}

		if err := d.ChangeLayer(LayerLabels); err != nil {
			return err
		}
		label := p.Piece.Name
		if p.Piece.Size != "" {
			label += " " + p.Piece.Size
		}
		height := textHeight(length, width)
		if _, err := d.Text(label, (p.Y+1)*markerUnits, (p.X+1)*markerUnits, 0, height); err != nil {
			return fmt.Errorf("label %s: %w", label, err)
		}
	}

	return saveDrawing(d, w)
}

// ExportMarkerDXF writes one sheet's marker to path.
func ExportMarkerDXF(path string, sheet model.SheetLayout) error {
	return writeFile(path, func(w io.Writer) error { return WriteMarkerDXF(w, sheet) })
}

// rect draws a closed rectangle from four lines. Arguments are centimetres.
func rect(d *drawing.Drawing, x, y, w, h float64) error {
	x0, y0 := x*markerUnits, y*markerUnits
	x1, y1 := (x+w)*markerUnits, (y+h)*markerUnits
	corners := [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	for i := range corners {
		a, b := corners[i], corners[(i+1)%len(corners)]
		if _, err := d.Line(a[0], a[1], 0, b[0], b[1], 0); err != nil {
			return fmt.Errorf("draw line: %w", err)
		}
	}
	return nil
}

func textHeight(length, width float64) float64 {
	h := math.Min(length, width) * markerUnits / 8
	if h > 25 {
		h = 25
	}
	if h < 5 {
		h = 5
	}
	return h
}

// saveDrawing goes through a temporary file because the drawing can only be
// saved to a path.
func saveDrawing(d *drawing.Drawing, w io.Writer) error {
	tmp, err := os.CreateTemp("", "fabricut-marker-*.dxf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := d.SaveAs(name); err != nil {
		return fmt.Errorf("save drawing: %w", err)
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
