package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sanxfxteam/NitroGen/nitroctl/pkg/tui"
)

// dashboardCmd launches the interactive TUI dashboard.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the interactive session dashboard",
	Long: `Launch an interactive terminal dashboard that displays live session
info from the model server. Data is refreshed every 2 seconds.

Key bindings:
  r          Force an immediate refresh
  x          Reset the session
  q / Ctrl+C Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		p := tea.NewProgram(tui.New(c), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
