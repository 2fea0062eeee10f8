// Package cli provides the command-line interface for convo.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/convo/internal/client"
	"github.com/raphaelgruber/convo/internal/config"
	"github.com/raphaelgruber/convo/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config, logger and API client
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func() error
	collector *metrics.Collector
	apiClient *client.Client

	// isInteractive reports whether stdout is a terminal; replaced in tests
	isInteractive = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

// interactiveAnnotation marks commands that hand the terminal to a full-screen view.
const interactiveAnnotation = "interactive"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "Terminal client for GraphQL chat conversations",
	Long: `Convo opens a chat conversation in the terminal: it loads the thread,
follows new messages live and lets you post replies.

Configuration comes from $CONVO_CONFIG (YAML) and CONVO_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		// Interactive views own the terminal, so they log to the file only
		var console io.Writer = os.Stderr
		if cmd.Annotations[interactiveAnnotation] == "true" {
			if !isInteractive() {
				return fmt.Errorf("%s needs an interactive terminal", cmd.CommandPath())
			}
			console = nil
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel, console)
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.ServerURL,
			client.WithTimeout(cfg.ClientTimeout),
			client.WithLogger(logger),
			client.WithMetrics(collector),
		)

		logger.Debug("convo starting", "version", Version, "command", cmd.Name(), "server_url", apiClient.Endpoint())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Debug("session stats", collector.Snapshot().LogAttrs()...)
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "GraphQL endpoint (overrides CONVO_SERVER_URL)")

	// Add subcommands
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(demoCmd)
}
