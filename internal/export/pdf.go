package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/FabriCut/internal/model"
)

// pieceColor represents an RGB fill for a placed piece.
type pieceColor struct {
	R, G, B int
}

// pieceColors cycle by piece name so every copy of a pattern piece shares a fill.
var pieceColors = []pieceColor{
	{R: 129, G: 199, B: 132}, // green
	{R: 100, G: 181, B: 246}, // blue
	{R: 255, G: 183, B: 77},  // orange
	{R: 186, G: 104, B: 200}, // purple
	{R: 77, G: 208, B: 225},  // cyan
	{R: 229, G: 115, B: 115}, // red
	{R: 255, G: 241, B: 118}, // yellow
	{R: 161, G: 136, B: 127}, // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendHeight = 30.0
	drawAreaTop  = marginTop + headerHeight + 8.0
)

// ExportPDF writes the marker PDF for a plan to path.
func ExportPDF(path string, doc PlanDocument) error {
	return writeFile(path, func(w io.Writer) error { return WritePDF(w, doc) })
}

// WritePDF renders one page per sheet with the marker drawing, followed by a
// summary page.
func WritePDF(w io.Writer, doc PlanDocument) error {
	if len(doc.Layout.Sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetTitle(doc.Title, true)

	colors := colorIndex(doc.Layout)
	for _, sheet := range doc.Layout.Sheets {
		pdf.AddPage()
		renderSheetPage(pdf, doc, sheet, colors)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, doc)

	return pdf.Output(w)
}

// colorIndex assigns a fill to each distinct piece name in order of appearance.
func colorIndex(result model.LayoutResult) map[string]pieceColor {
	index := make(map[string]pieceColor)
	for _, s := range result.Sheets {
		for _, p := range s.Placements {
			if _, ok := index[p.Piece.Name]; !ok {
				index[p.Piece.Name] = pieceColors[len(index)%len(pieceColors)]
			}
		}
	}
	return index
}

// renderSheetPage draws a sheet with the fabric running left to right: the
// sheet length is the page x axis and the fabric width is the page y axis.
func renderSheetPage(pdf *fpdf.Fpdf, doc PlanDocument, sheet model.SheetLayout, colors map[string]pieceColor) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("%s - Sheet %d (%.1f x %.1f cm)", doc.Title, sheet.SheetNumber, sheet.Length, sheet.Width)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Fabric: %s | Pieces: %d | Shelves: %d | Utilization: %.1f%% | Waste: %.0f cm2",
		fabricLabel(doc.Fabric), sheet.PiecesCount(), sheet.Shelves, sheet.Utilization(), sheet.WasteArea())
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")

	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - legendHeight
	if sheet.Length <= 0 || sheet.Width <= 0 {
		return
	}
	scale := math.Min(drawWidth/sheet.Length, drawHeight/sheet.Width)

	canvasW := sheet.Length * scale
	canvasH := sheet.Width * scale
	offsetX := marginLeft + (drawWidth-canvasW)/2
	offsetY := drawAreaTop

	// Fabric
	pdf.SetFillColor(245, 240, 230)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	pdf.Rect(offsetX, offsetY, canvasW, canvasH, "FD")

	for _, r := range sheet.Remnants {
		rx := offsetX + r.Y*scale
		ry := offsetY + r.X*scale
		rw := r.Length * scale
		rh := r.Width * scale
		pdf.SetFillColor(220, 220, 220)
		pdf.SetDrawColor(150, 150, 150)
		pdf.SetLineWidth(0.2)
		pdf.Rect(rx, ry, rw, rh, "FD")
		drawHatchPattern(pdf, rx, ry, rw, rh)
	}

	for _, p := range sheet.Placements {
		col := colors[p.Piece.Name]
		pw := p.PlacedHeight() * scale
		ph := p.PlacedWidth() * scale
		px := offsetX + p.Y*scale
		py := offsetY + p.X*scale

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		pdf.Rect(px, py, pw, ph, "FD")

		if pw > 12 && ph > 8 {
			pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
			pdf.SetTextColor(0, 0, 0)

			label := p.Piece.Name
			if p.Piece.Size != "" {
				label += " " + p.Piece.Size
			}
			dims := fmt.Sprintf("%.0fx%.0f", p.Piece.Width, p.Piece.Height)
			if p.Rotated {
				dims += " R"
			}

			labelW := pdf.GetStringWidth(label)
			dimsW := pdf.GetStringWidth(dims)
			if labelW < pw-2 {
				pdf.SetXY(px+(pw-labelW)/2, py+ph/2-4)
				pdf.CellFormat(labelW, 4, label, "", 0, "C", false, 0, "")
			}
			if ph > 14 && dimsW < pw-2 {
				pdf.SetXY(px+(pw-dimsW)/2, py+ph/2)
				pdf.CellFormat(dimsW, 4, dims, "", 0, "C", false, 0, "")
			}
		}
	}

	drawDimensionAnnotations(pdf, sheet, offsetX, offsetY, canvasW, canvasH)
	drawPiecesLegend(pdf, sheet, colors, offsetY+canvasH+6)
}

func fabricLabel(f model.FabricSpec) string {
	grain := "grain free"
	if f.GrainRequired {
		grain = "grain locked"
	}
	name := f.Type
	if name == "" {
		name = "fabric"
	}
	return fmt.Sprintf("%s %.0fcm, seam %.1fcm, %s", name, f.Width, f.SeamAllowance, grain)
}

// drawHatchPattern marks reusable remnants with diagonal lines.
func drawHatchPattern(pdf *fpdf.Fpdf, x, y, w, h float64) {
	pdf.SetDrawColor(150, 150, 150)
	pdf.SetLineWidth(0.1)

	spacing := 3.0
	for d := spacing; d < w+h; d += spacing {
		x1 := x + math.Max(0, d-h)
		y1 := y + math.Min(h, d)
		x2 := x + math.Min(w, d)
		y2 := y + math.Max(0, d-w)
		pdf.Line(x1, y1, x2, y2)
	}
}

// drawDimensionAnnotations labels the sheet length below the drawing and the
// fabric width to its left.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, sheet model.SheetLayout, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	lengthLabel := fmt.Sprintf("%.1f cm", sheet.Length)
	lw := pdf.GetStringWidth(lengthLabel)
	pdf.SetXY(offsetX+(canvasW-lw)/2, offsetY+canvasH+1)
	pdf.CellFormat(lw, 4, lengthLabel, "", 0, "C", false, 0, "")

	widthLabel := fmt.Sprintf("%.0f cm", sheet.Width)
	pdf.TransformBegin()
	pdf.TransformRotate(90, offsetX-3, offsetY+canvasH/2)
	ww := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(offsetX-3-ww/2, offsetY+canvasH/2-2)
	pdf.CellFormat(ww, 4, widthLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// drawPiecesLegend lists each distinct piece on the sheet with its count.
func drawPiecesLegend(pdf *fpdf.Fpdf, sheet model.SheetLayout, colors map[string]pieceColor, startY float64) {
	if len(sheet.Placements) == 0 {
		return
	}

	type entry struct {
		name  string
		piece model.PieceSpec
		count int
	}
	var entries []*entry
	seen := make(map[string]*entry)
	for _, p := range sheet.Placements {
		key := p.Piece.Name + "|" + p.Piece.Size
		e, ok := seen[key]
		if !ok {
			e = &entry{name: p.Piece.Name, piece: p.Piece}
			seen[key] = e
			entries = append(entries, e)
		}
		e.count++
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, startY)
	pdf.CellFormat(30, 4, "Pieces on sheet:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	xPos := marginLeft + 32
	maxX := pageWidth - marginRight

	for _, e := range entries {
		col := colors[e.name]
		label := fmt.Sprintf("%s (%.0fx%.0f) x%d", e.name, e.piece.Width, e.piece.Height, e.count)
		if e.piece.Size != "" {
			label = fmt.Sprintf("%s %s (%.0fx%.0f) x%d", e.name, e.piece.Size, e.piece.Width, e.piece.Height, e.count)
		}
		labelW := pdf.GetStringWidth(label) + 6

		if xPos+labelW > maxX {
			startY += 5
			xPos = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(xPos, startY+0.5, 3, 3, "F")
		pdf.SetXY(xPos+4, startY)
		pdf.CellFormat(labelW-4, 4, label, "", 0, "L", false, 0, "")

		xPos += labelW + 2
	}
}

// renderSummaryPage draws the plan totals and a per-sheet table.
func renderSummaryPage(pdf *fpdf.Fpdf, doc PlanDocument) {
	result := doc.Layout

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Cutting Plan Summary: "+doc.Title, "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Overall", "", 0, "L", false, 0, "")
	y += 9

	type item struct{ label, value string }
	summaryItems := []item{
		{"Fabric", fabricLabel(doc.Fabric)},
		{"Sheets", fmt.Sprintf("%d", len(result.Sheets))},
		{"Pieces", fmt.Sprintf("%d", result.TotalPieces())},
		{"Fabric Needed", fmt.Sprintf("%.2f m", result.TotalFabricNeededCM/100)},
		{"Utilization", fmt.Sprintf("%.1f%%", result.UtilizationPct)},
		{"Waste", fmt.Sprintf("%.1f%% (%.0f cm2)", result.WasteAnalysis.WastePercentage, result.WasteAnalysis.WasteAreaCM2)},
		{"Cutting Time", fmt.Sprintf("%.0f min", result.CuttingTimeEstimateMins)},
	}
	if doc.Order != "" {
		summaryItems = append([]item{{"Order", doc.Order}}, summaryItems...)
	}
	if doc.Cost != nil {
		summaryItems = append(summaryItems,
			item{"Fabric Cost", doc.Cost.FabricCost.StringFixed(2) + " " + doc.Cost.Currency},
			item{"Waste Cost", doc.Cost.WasteCost.StringFixed(2) + " " + doc.Cost.Currency},
			item{"Labour Cost", doc.Cost.LabourCost.StringFixed(2) + " " + doc.Cost.Currency},
			item{"Total Cost", doc.Cost.Total.StringFixed(2) + " " + doc.Cost.Currency},
		)
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(45, 6, it.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(120, 6, it.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 6
	}

	y += 5
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Sheet Breakdown", "", 0, "L", false, 0, "")
	y += 9

	colWidths := []float64{20, 45, 25, 25, 35, 50}
	headers := []string{"Sheet", "Length x Width", "Shelves", "Pieces", "Utilization", "Remnants"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 6

	pdf.SetFont("Helvetica", "", 9)
	for i, sheet := range result.Sheets {
		if y > pageHeight-marginBottom-10 {
			pdf.AddPage()
			y = marginTop
		}
		rowData := []string{
			fmt.Sprintf("%d", sheet.SheetNumber),
			fmt.Sprintf("%.1f x %.0f cm", sheet.Length, sheet.Width),
			fmt.Sprintf("%d", sheet.Shelves),
			fmt.Sprintf("%d", sheet.PiecesCount()),
			fmt.Sprintf("%.1f%%", sheet.Utilization()),
			fmt.Sprintf("%d (%.0f cm2)", len(sheet.Remnants), model.TotalRemnantArea(sheet.Remnants)),
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		xPos = marginLeft
		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 6
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by FabriCut", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// labelFontSize returns an appropriate font size based on the rectangle dimensions.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 40:
		return 8
	case minDim > 20:
		return 7
	default:
		return 6
	}
}
