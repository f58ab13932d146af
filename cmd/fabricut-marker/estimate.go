package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/piwi3910/FabriCut/internal/model"
)

func newEstimateCmd() *cobra.Command {
	opts := &fabricFlags{}
	var wastePct, pricePerMeter, rollLength float64
	cmd := &cobra.Command{
		Use:   "estimate <pieces-file>",
		Short: "Estimate how much fabric to buy without laying out the pieces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.newLogger()
			pieces, err := readPieces(args[0], opts.dxfScale, log)
			if err != nil {
				return err
			}

			est := model.CalculatePurchaseEstimate(pieces, opts.width, opts.seam, wastePct, pricePerMeter, rollLength)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Piece area:      %.0f cm2 (seam %.2fcm)\n", est.TotalPieceArea, est.SeamAllowance)
			fmt.Fprintf(out, "Exact length:    %.2f m at %.0fcm width\n", est.MetersExact, est.FabricWidth)
			fmt.Fprintf(out, "To buy:          %.1f m (+%.0f%% waste)\n", est.MetersWithWaste, est.WastePercent)
			if est.RollsNeeded > 0 {
				fmt.Fprintf(out, "Rolls:           %d x %.0f m\n", est.RollsNeeded, est.RollLength)
			}
			if est.EstimatedCost > 0 {
				fmt.Fprintf(out, "Estimated cost:  %.2f\n", est.EstimatedCost)
			}
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().Float64Var(&wastePct, "waste", 15, "Waste allowance in percent")
	cmd.Flags().Float64Var(&pricePerMeter, "price", 0, "Fabric price per metre")
	cmd.Flags().Float64Var(&rollLength, "roll", 0, "Roll length in metres, 0 when sold by the metre")
	return cmd
}
