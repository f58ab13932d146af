package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/FabriCut/internal/model"
)

// Workbook sheet names.
const (
	SummarySheet    = "Summary"
	SheetsSheet     = "Sheets"
	PlacementsSheet = "Placements"
)

// WriteWorkbook writes the plan as an .xlsx workbook with a summary, one row
// per sheet and one row per placed piece.
func WriteWorkbook(w io.Writer, doc PlanDocument) error {
	f, err := buildWorkbook(doc)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ExportWorkbook writes the plan workbook to path.
func ExportWorkbook(path string, doc PlanDocument) error {
	f, err := buildWorkbook(doc)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func buildWorkbook(doc PlanDocument) (*excelize.File, error) {
	if len(doc.Layout.Sheets) == 0 {
		return nil, fmt.Errorf("no sheets to export")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetsSheet, PlacementsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})

	writeSummary(f, doc, headerStyle)
	writeSheetRows(f, doc.Layout, headerStyle)
	writePlacementRows(f, doc.Layout, headerStyle)

	f.SetActiveSheet(0)
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string, widths []float64) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
		if i < len(widths) {
			f.SetColWidth(sheet, col, col, widths[i])
		}
	}
}

func writeSummary(f *excelize.File, doc PlanDocument, style int) {
	result := doc.Layout
	writeHeader(f, SummarySheet, style, []string{"Field", "Value"}, []float64{24, 40})

	rows := [][]interface{}{
		{"Plan", doc.Title},
		{"Order", doc.Order},
		{"Fabric Type", doc.Fabric.Type},
		{"Fabric Width (cm)", doc.Fabric.Width},
		{"Seam Allowance (cm)", doc.Fabric.SeamAllowance},
		{"Grain Locked", doc.Fabric.GrainRequired},
		{"Sheets", len(result.Sheets)},
		{"Pieces", result.TotalPieces()},
		{"Fabric Needed (cm)", result.TotalFabricNeededCM},
		{"Utilization (%)", result.UtilizationPct},
		{"Waste (%)", result.WasteAnalysis.WastePercentage},
		{"Waste Area (cm2)", result.WasteAnalysis.WasteAreaCM2},
		{"Cutting Time (min)", result.CuttingTimeEstimateMins},
	}
	if doc.Cost != nil {
		rows = append(rows,
			[]interface{}{"Currency", doc.Cost.Currency},
			[]interface{}{"Fabric Cost", doc.Cost.FabricCost.InexactFloat64()},
			[]interface{}{"Waste Cost", doc.Cost.WasteCost.InexactFloat64()},
			[]interface{}{"Labour Cost", doc.Cost.LabourCost.InexactFloat64()},
			[]interface{}{"Total Cost", doc.Cost.Total.InexactFloat64()},
		)
	}
	for i, row := range rows {
		f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+2), row[0])
		f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+2), row[1])
	}
}

func writeSheetRows(f *excelize.File, result model.LayoutResult, style int) {
	writeHeader(f, SheetsSheet, style,
		[]string{"Sheet", "Width (cm)", "Length (cm)", "Shelves", "Pieces", "Utilization (%)", "Waste (cm2)", "Remnants"},
		[]float64{8, 12, 12, 10, 10, 16, 14, 10})

	for i, s := range result.Sheets {
		row := i + 2
		f.SetCellValue(SheetsSheet, fmt.Sprintf("A%d", row), s.SheetNumber)
		f.SetCellValue(SheetsSheet, fmt.Sprintf("B%d", row), s.Width)
		f.SetCellValue(SheetsSheet, fmt.Sprintf("C%d", row), s.Length)
		f.SetCellValue(SheetsSheet, fmt.Sprintf("D%d", row), s.Shelves)
		f.SetCellValue(SheetsSheet, fmt.Sprintf("E%d", row), s.PiecesCount())
		f.SetCellValue(SheetsSheet, fmt.Sprintf("F%d", row), s.Utilization())
		f.SetCellValue(SheetsSheet, fmt.Sprintf("G%d", row), s.WasteArea())
		f.SetCellValue(SheetsSheet, fmt.Sprintf("H%d", row), len(s.Remnants))
	}
}

func writePlacementRows(f *excelize.File, result model.LayoutResult, style int) {
	writeHeader(f, PlacementsSheet, style,
		[]string{"Sheet", "Shelf", "Piece", "Size", "Color", "Copy", "X (cm)", "Y (cm)", "Width (cm)", "Height (cm)", "Rotated"},
		[]float64{8, 8, 24, 8, 12, 8, 10, 10, 12, 12, 10})

	row := 2
	for _, s := range result.Sheets {
		for _, p := range s.Placements {
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("A%d", row), s.SheetNumber)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("B%d", row), p.Shelf)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("C%d", row), p.Piece.Name)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("D%d", row), p.Piece.Size)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("E%d", row), p.Piece.Color)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("F%d", row), p.Instance)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("G%d", row), p.X)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("H%d", row), p.Y)
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("I%d", row), p.PlacedWidth())
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("J%d", row), p.PlacedHeight())
			f.SetCellValue(PlacementsSheet, fmt.Sprintf("K%d", row), p.Rotated)
			row++
		}
	}
}
