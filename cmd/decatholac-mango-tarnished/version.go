package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/decatholac/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", common.AppName, common.GetFullVersion())
	},
}
