package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sanxfxteam/NitroGen/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a stub model server for local development",
	Long: `Run a model server that answers every predict request with a neutral
gamepad action. Useful for exercising clients and the dashboard without
a real model process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Str("component", "nitrogen-server").Logger()

		srv := server.New(server.NewStaticHandler(), server.WithLogger(log))
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		bound, err := srv.Listen(addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl+C to stop.\n", bound)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			fmt.Fprintln(cmd.OutOrStdout(), "Shutting down.")
			srv.Stop()
			return <-errCh
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
