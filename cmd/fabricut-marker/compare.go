package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/piwi3910/FabriCut/internal/engine"
)

func newCompareCmd() *cobra.Command {
	opts := &fabricFlags{}
	cmd := &cobra.Command{
		Use:   "compare <pieces-file>",
		Short: "Compare the layout under alternative fabric setups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.newLogger()
			settings, err := opts.settings()
			if err != nil {
				return err
			}
			pieces, err := readPieces(args[0], opts.dxfScale, log)
			if err != nil {
				return err
			}

			results := engine.CompareScenarios(settings.Layout, engine.BuildDefaultScenarios(opts.fabric()), pieces)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tSHEETS\tFABRIC CM\tUTIL %\tWASTE COST\tTIME MIN")
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", r.Scenario.Name, r.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.2f\t%.0f\n",
					r.Scenario.Name, r.SheetsUsed, r.FabricNeededCM, r.UtilizationPct, r.CostOfWaste, r.CuttingTimeMins)
			}
			return tw.Flush()
		},
	}
	opts.register(cmd)
	return cmd
}
