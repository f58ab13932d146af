package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/export"
	"github.com/piwi3910/FabriCut/internal/model"
)

type layoutOptions struct {
	fabricFlags
	title   string
	pdfPath string
	dxfBase string
	xlsPath string
}

func newLayoutCmd() *cobra.Command {
	opts := &layoutOptions{}
	cmd := &cobra.Command{
		Use:   "layout <pieces-file>",
		Short: "Nest a piece list onto fabric sheets",
		Long: "Reads pieces from CSV, Excel or DXF, lays them out shelf by shelf " +
			"and writes the requested marker files.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, opts, args[0])
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.title, "title", "", "Title printed on the PDF, defaults to the file name")
	cmd.Flags().StringVar(&opts.pdfPath, "pdf", "", "Write the cutting layout PDF to this path")
	cmd.Flags().StringVar(&opts.dxfBase, "dxf", "", "Write one DXF marker per sheet as <base>-sheet<N>.dxf")
	cmd.Flags().StringVar(&opts.xlsPath, "xlsx", "", "Write the layout workbook to this path")
	return cmd
}

func runLayout(cmd *cobra.Command, opts *layoutOptions, input string) error {
	log := opts.newLogger()

	settings, err := opts.settings()
	if err != nil {
		return err
	}
	pieces, err := readPieces(input, opts.dxfScale, log)
	if err != nil {
		return err
	}

	fabric := opts.fabric()
	result, err := engine.New(settings.Layout).Optimize(pieces, fabric)
	if err != nil {
		return err
	}
	log.Info().
		Int("sheets", len(result.Sheets)).
		Float64("fabric_cm", result.TotalFabricNeededCM).
		Float64("utilization_pct", result.UtilizationPct).
		Msg("Layout complete")

	printLayout(cmd, result)

	title := opts.title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	doc := export.FromLayout(title, fabric, result)

	if opts.pdfPath != "" {
		if err := export.ExportPDF(opts.pdfPath, doc); err != nil {
			return fmt.Errorf("writing PDF: %w", err)
		}
		log.Info().Str("path", opts.pdfPath).Msg("PDF written")
	}
	if opts.xlsPath != "" {
		if err := export.ExportWorkbook(opts.xlsPath, doc); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		log.Info().Str("path", opts.xlsPath).Msg("Workbook written")
	}
	if opts.dxfBase != "" {
		if dir := filepath.Dir(opts.dxfBase); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		for _, sheet := range result.Sheets {
			path := sheetPath(opts.dxfBase, sheet.SheetNumber)
			if err := export.ExportMarkerDXF(path, sheet); err != nil {
				return fmt.Errorf("writing sheet %d marker: %w", sheet.SheetNumber, err)
			}
			log.Info().Str("path", path).Int("sheet", sheet.SheetNumber).Msg("Marker written")
		}
	}
	return nil
}

// sheetPath names the DXF file of one sheet.
func sheetPath(base string, sheetNumber int) string {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s-sheet%d.dxf", base, sheetNumber)
}

func isDXF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".dxf")
}

func printLayout(cmd *cobra.Command, result model.LayoutResult) {
	out := cmd.OutOrStdout()
	for _, s := range result.Sheets {
		fmt.Fprintf(out, "Sheet %d: %.1f x %.1f cm, %d pieces, %d shelves, %.1f%% used\n",
			s.SheetNumber, s.Width, s.Length, s.PiecesCount(), s.Shelves, s.Utilization())
	}
	fmt.Fprintf(out, "Total fabric: %.1f cm  Utilization: %.1f%%  Waste: %.0f cm2  Cutting time: %.0f min\n",
		result.TotalFabricNeededCM, result.UtilizationPct,
		result.WasteAnalysis.WasteAreaCM2, result.CuttingTimeEstimateMins)
}
