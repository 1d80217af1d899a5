package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/daemon"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarmd [listen-address]",
		Short: "Run the alarm engine and serve it over gRPC.",
		Long: `Starts the alarm engine and the gRPC server alarmctl talks to.

The engine loads the stored alarms, then either polls the clock every few seconds
or arms one wake request per alarm, depending on engine.mode in the configuration.
Listen address can be provided as argument to override config (e.g., :9090, 127.0.0.1:50061).
Alarms are persisted through the configured store backend (file, sqlite or memory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}

	// fireCmd replays a wake callback in a fresh process.
	fireCmd = &cobra.Command{
		Use:   "fire <identifier>",
		Short: "Show the notification for a wake identifier.",
		Long: `Resolves the wake identifier against the stored alarms and posts the notification.

This is the entry point a host scheduler calls when a one-shot wake request fires
while alarmd is not running. Unknown identifiers produce a generic notification.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			identifier, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid identifier %q: %w", args[0], err)
			}

			return daemon.Fire(context.Background(), configPath, identifier)
		},
	}
)

// Execute runs the alarmd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.AddCommand(fireCmd)
}
