package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the configured targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(false); err != nil {
			return err
		}

		targets, err := config.LoadTargets()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODE\tDELAY\tSOURCE")
		for _, target := range targets {
			fmt.Fprintf(w, "%s\t%s\t%dd\t%s\n", target.Name, target.Mode, target.Delay, target.Source)
		}
		return w.Flush()
	},
}
