package importer

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"

	"github.com/piwi3910/FabriCut/internal/model"
)

// DefaultDXFScale converts millimetre drawings, the usual unit of pattern
// CAD exports, to centimetres.
const DefaultDXFScale = 0.1

type point struct{ X, Y float64 }

// outline is a closed pattern contour.
type outline []point

func (o outline) bounds() (min, max point) {
	min = point{math.Inf(1), math.Inf(1)}
	max = point{math.Inf(-1), math.Inf(-1)}
	for _, p := range o {
		min.X, min.Y = math.Min(min.X, p.X), math.Min(min.Y, p.Y)
		max.X, max.Y = math.Max(max.X, p.X), math.Max(max.Y, p.Y)
	}
	return min, max
}

// area is the absolute shoelace area.
func (o outline) area() float64 {
	n := len(o)
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += o[i].X*o[j].Y - o[j].X*o[i].Y
	}
	return math.Abs(a) / 2
}

type segment struct {
	start point
	end   point
}

// ImportDXF reads pattern pieces from a DXF file. Each closed contour
// (LWPOLYLINE, CIRCLE, or a chain of LINEs and ARCs) is reduced to its
// bounding box; contours with the same box become one piece with a quantity.
// scale converts drawing units to centimetres.
func ImportDXF(path string, scale float64) ImportResult {
	if scale <= 0 {
		scale = DefaultDXFScale
	}
	drawing, err := dxf.Open(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot open DXF file: %v", err)}}
	}

	entities := drawing.Entities()
	if len(entities) == 0 {
		return ImportResult{Errors: []string{"DXF file contains no entities"}}
	}

	var result ImportResult
	var outlines []outline
	var segments []segment

	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			o := lwPolylineToOutline(e)
			if len(o) >= 3 {
				outlines = append(outlines, o)
			} else {
				result.Warnings = append(result.Warnings, "Skipped LWPOLYLINE with fewer than 3 vertices")
			}
		case *entity.Circle:
			outlines = append(outlines, circleToOutline(e, 64))
		case *entity.Arc:
			if pts := arcToPoints(e, 32); len(pts) >= 2 {
				segments = append(segments, pointsToSegments(pts)...)
			}
		case *entity.Line:
			segments = append(segments, segment{
				start: point{X: e.Start[0], Y: e.Start[1]},
				end:   point{X: e.End[0], Y: e.End[1]},
			})
		}
	}

	for _, o := range chainSegments(segments, 0.01) {
		if len(o) >= 3 {
			outlines = append(outlines, o)
		}
	}
	if len(outlines) == 0 {
		result.Errors = append(result.Errors, "No closed shapes found in DXF file")
		return result
	}

	// Largest contours first so numbering is stable
	sort.SliceStable(outlines, func(i, j int) bool { return outlines[i].area() > outlines[j].area() })

	index := make(map[[2]int64]int)
	for _, o := range outlines {
		min, max := o.bounds()
		width := round1((max.X - min.X) * scale)
		height := round1((max.Y - min.Y) * scale)
		if width < 0.1 || height < 0.1 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Skipped degenerate shape (%.2f x %.2f cm)", width, height))
			continue
		}

		key := [2]int64{int64(width * 10), int64(height * 10)}
		if at, ok := index[key]; ok {
			result.Pieces[at].Quantity++
			continue
		}
		index[key] = len(result.Pieces)
		result.Pieces = append(result.Pieces,
			model.NewPieceSpec(fmt.Sprintf("Pattern piece %d", len(result.Pieces)+1), width, height, 1))
	}
	return result
}

// ImportDXFFromReader stores an uploaded drawing in a temporary file and
// imports it.
func ImportDXFFromReader(r io.Reader, scale float64) ImportResult {
	tmp, err := os.CreateTemp("", "fabricut-*.dxf")
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot buffer DXF file: %v", err)}}
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot buffer DXF file: %v", err)}}
	}
	return ImportDXF(tmp.Name(), scale)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// lwPolylineToOutline converts an LWPOLYLINE; bulged vertices are expanded
// into arc points.
func lwPolylineToOutline(lw *entity.LwPolyline) outline {
	var o outline
	for i := 0; i < len(lw.Vertices); i++ {
		v := lw.Vertices[i]
		current := point{X: v[0], Y: v[1]}

		bulge := 0.0
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		if math.Abs(bulge) > 1e-9 {
			next := lw.Vertices[(i+1)%len(lw.Vertices)]
			arc := bulgeArcPoints(current, point{X: next[0], Y: next[1]}, bulge, 32)
			o = append(o, arc[:len(arc)-1]...)
			continue
		}
		o = append(o, current)
	}
	return o
}

// bulgeArcPoints samples the arc between two vertices. The bulge is the
// tangent of a quarter of the included angle; negative bulges run clockwise.
func bulgeArcPoints(p1, p2 point, bulge float64, n int) outline {
	mx, my := (p1.X+p2.X)/2, (p1.Y+p2.Y)/2
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	chord := math.Hypot(dx, dy)
	if chord < 1e-9 {
		return outline{p1, p2}
	}

	sagitta := math.Abs(bulge) * chord / 2
	radius := (chord*chord/(4*sagitta) + sagitta) / 2

	perpX, perpY := -dy/chord, dx/chord
	if bulge > 0 {
		perpX, perpY = -perpX, -perpY
	}
	dist := radius - sagitta
	cx, cy := mx+perpX*dist, my+perpY*dist

	start := math.Atan2(p1.Y-cy, p1.X-cx)
	end := math.Atan2(p2.Y-cy, p2.X-cx)
	if bulge < 0 && end > start {
		end -= 2 * math.Pi
	}
	if bulge > 0 && end < start {
		end += 2 * math.Pi
	}

	pts := make(outline, 0, n+1)
	for i := 0; i <= n; i++ {
		a := start + float64(i)/float64(n)*(end-start)
		pts = append(pts, point{X: cx + radius*math.Cos(a), Y: cy + radius*math.Sin(a)})
	}
	return pts
}

func circleToOutline(c *entity.Circle, n int) outline {
	o := make(outline, n)
	cx, cy, r := c.Center[0], c.Center[1], c.Radius
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		o[i] = point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return o
}

func arcToPoints(a *entity.Arc, n int) []point {
	cx, cy := a.Circle.Center[0], a.Circle.Center[1]
	r := a.Circle.Radius
	start := a.Angle[0] * math.Pi / 180
	end := a.Angle[1] * math.Pi / 180
	if end <= start {
		end += 2 * math.Pi
	}

	pts := make([]point, n+1)
	for i := 0; i <= n; i++ {
		ang := start + float64(i)/float64(n)*(end-start)
		pts[i] = point{X: cx + r*math.Cos(ang), Y: cy + r*math.Sin(ang)}
	}
	return pts
}

func pointsToSegments(pts []point) []segment {
	segs := make([]segment, 0, len(pts)-1)
	for i := 0; i < len(pts)-1; i++ {
		segs = append(segs, segment{start: pts[i], end: pts[i+1]})
	}
	return segs
}

// chainSegments joins loose segments whose endpoints lie within tolerance
// into contours.
func chainSegments(segs []segment, tolerance float64) []outline {
	used := make([]bool, len(segs))
	var outlines []outline

	for start := range segs {
		if used[start] {
			continue
		}
		used[start] = true
		chain := outline{segs[start].start, segs[start].end}

		for extended := true; extended; {
			extended = false
			tail := chain[len(chain)-1]
			if len(chain) > 3 && pointsClose(chain[0], tail, tolerance) {
				break
			}
			for i, s := range segs {
				if used[i] {
					continue
				}
				switch {
				case pointsClose(tail, s.start, tolerance):
					chain = append(chain, s.end)
				case pointsClose(tail, s.end, tolerance):
					chain = append(chain, s.start)
				default:
					continue
				}
				used[i] = true
				extended = true
				break
			}
		}

		if len(chain) >= 3 && pointsClose(chain[0], chain[len(chain)-1], tolerance) {
			chain = chain[:len(chain)-1]
		}
		if len(chain) >= 3 {
			outlines = append(outlines, chain)
		}
	}
	return outlines
}

func pointsClose(a, b point, tolerance float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= tolerance
}
