package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X github.com/sanxfxteam/NitroGen/nitroctl/cmd.nitroctlVersion=x.y.z"
var nitroctlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the nitroctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "nitroctl version %s\n", nitroctlVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
