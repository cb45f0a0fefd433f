package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the model server's session",
	Long: `Ask the model server to clear its session buffers so the next
prediction starts from a fresh context.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Reset(); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session reset.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
