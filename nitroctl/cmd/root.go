package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sanxfxteam/NitroGen/nitroctl/pkg/config"
	"github.com/sanxfxteam/NitroGen/nitroctl/pkg/output"
	"github.com/sanxfxteam/NitroGen/pkg/client"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	hostFlag     string
	portFlag     int
	timeoutFlag  time.Duration
	verboseFlag  bool // --verbose: log client activity to stderr

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	formatter output.Formatter
)

// rootCmd is the base command for nitroctl.
var rootCmd = &cobra.Command{
	Use:   "nitroctl",
	Short: "NitroGen CLI — query and control a running model server",
	Long: `Nitroctl is the operator-facing CLI tool for the NitroGen inference
stack. It talks to a running model server over its request-reply
channel: fetch session info, request action predictions for a frame,
reset the session, or watch a live dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if cmd.Flags().Changed("host") {
			cfg.Host = hostFlag
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = portFlag
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = config.Duration(timeoutFlag)
		}
		if outputFormat != "" {
			cfg.OutputFormat = outputFormat
		}

		// Create output formatter
		formatter = output.NewFormatter(cfg.OutputFormat)

		return nil
	},
}

// dial connects to the model server using the effective configuration.
func dial() (*client.Client, error) {
	level := zerolog.WarnLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	return client.Dial(cfg.Host, cfg.Port,
		client.WithTimeout(cfg.Timeout.Std()),
		client.WithLogger(log),
	)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetFormatter allows tests to inject a formatter.
func SetFormatter(f output.Formatter) {
	formatter = f
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.nitrogen/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", client.DefaultHost, "model server host")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", client.DefaultPort, "model server port")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", client.DefaultTimeout, "reply timeout for each request")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log client activity to stderr")
}
