// fabricut-marker lays out a piece list on fabric without the planning
// service and writes the marker as PDF, DXF or Excel.
//
// Build:
//
//	go build -o fabricut-marker ./cmd/fabricut-marker
//
// Example:
//
//	fabricut-marker layout pieces.csv --width 150 --max-length 300 --pdf marker.pdf --dxf out/marker
//	fabricut-marker compare pieces.xlsx --width 150 --seam 1
//	fabricut-marker estimate pieces.csv --width 150 --waste 12 --price 6.5
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/piwi3910/FabriCut/internal/config"
	"github.com/piwi3910/FabriCut/internal/importer"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
)

// fabricFlags are shared by every command that lays out pieces.
type fabricFlags struct {
	fabricType   string
	width        float64
	maxLength    float64
	seam         float64
	grain        bool
	costPerSqM   float64
	settingsPath string
	dxfScale     float64
	verbose      bool
}

func (f *fabricFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fabricType, "fabric", "", "Fabric type shown on the output")
	cmd.Flags().Float64Var(&f.width, "width", 150, "Fabric width in cm")
	cmd.Flags().Float64Var(&f.maxLength, "max-length", 300, "Maximum sheet length in cm")
	cmd.Flags().Float64Var(&f.seam, "seam", 1, "Seam allowance between pieces in cm")
	cmd.Flags().BoolVar(&f.grain, "grain", false, "Keep pieces on the grain (no rotation)")
	cmd.Flags().Float64Var(&f.costPerSqM, "cost-per-sqm", 0, "Fabric cost per square metre, overrides the settings file")
	cmd.Flags().StringVar(&f.settingsPath, "settings", config.DefaultSettingsPath(), "Planning settings file")
	cmd.Flags().Float64Var(&f.dxfScale, "dxf-scale", importer.DefaultDXFScale, "Drawing units per cm for DXF piece lists")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging")
}

func (f *fabricFlags) fabric() model.FabricSpec {
	return model.FabricSpec{
		Type:           f.fabricType,
		Width:          f.width,
		MaxSheetLength: f.maxLength,
		SeamAllowance:  f.seam,
		GrainRequired:  f.grain,
		CostPerSqMeter: f.costPerSqM,
	}
}

func (f *fabricFlags) newLogger() *logger.Logger {
	level := "info"
	if f.verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:       level,
		Environment: "local",
		ServiceName: "fabricut-marker",
		Output:      os.Stderr,
	})
}

func (f *fabricFlags) settings() (model.PlanningSettings, error) {
	s, err := config.LoadSettings(f.settingsPath)
	if err != nil {
		return model.PlanningSettings{}, fmt.Errorf("loading settings %s: %w", f.settingsPath, err)
	}
	return s, nil
}

// readPieces imports a piece list and logs every row-level problem.
func readPieces(path string, dxfScale float64, log *logger.Logger) ([]model.PieceSpec, error) {
	var res importer.ImportResult
	if isDXF(path) {
		res = importer.ImportDXF(path, dxfScale)
	} else {
		res = importer.ImportFile(path)
	}
	for _, w := range res.Warnings {
		log.Warn().Str("file", path).Msg(w)
	}
	for _, e := range res.Errors {
		log.Error().Str("file", path).Msg(e)
	}
	if len(res.Pieces) == 0 {
		return nil, fmt.Errorf("no pieces read from %s", path)
	}
	log.Info().Str("file", path).Int("pieces", len(res.Pieces)).
		Int("instances", model.TotalQuantity(res.Pieces)).Msg("Piece list imported")
	return res.Pieces, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fabricut-marker",
		Short:         "Lay out garment pieces on fabric and export the marker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLayoutCmd(), newCompareCmd(), newEstimateCmd(), newSettingsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
