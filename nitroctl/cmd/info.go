package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the model server's session info",
	Long: `Query the model server for its current session metadata, such as the
number of buffered observations, and print it in the selected output
format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Info()
		if err != nil {
			return fmt.Errorf("failed to fetch session info: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(info))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
