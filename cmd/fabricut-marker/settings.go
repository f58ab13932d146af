package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/piwi3910/FabriCut/internal/config"
)

func newSettingsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the planning settings profile",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective planning settings to a file for editing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Existing values are kept, missing ones take the defaults
			s, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("loading settings %s: %w", path, err)
			}
			if err := config.SaveSettings(path, s); err != nil {
				return fmt.Errorf("saving settings %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Planning settings written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "settings", config.DefaultSettingsPath(), "Planning settings file")
	cmd.AddCommand(initCmd)
	return cmd
}
