package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/control"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// serverAddress overrides the configured alarmd address.
	serverAddress string
	// noColor disables colored output.
	noColor bool
	// assumeYes skips the delete confirmation.
	assumeYes bool

	// errAborted is returned when the user declines a confirmation.
	errAborted = errors.New("aborted")

	// rootCmd represents the base command for managing alarms.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Manage the alarms of a running alarmd.",
		Long: `Lists, creates, edits and deletes weekday alarms held by alarmd.

Every command talks to alarmd over gRPC. The server address is taken from the
configuration file unless --server is given.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all alarms.",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, ctl *control.Controller, _ *cobra.Command, _ []string) error {
			return ctl.List(ctx)
		}),
	}

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Create an alarm.",
		Long: `Creates an alarm and adds it to the set.

Without --time the alarm starts at the current minute. Without --days it never
rings until days are selected with update.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, ctl *control.Controller, cmd *cobra.Command, _ []string) error {
			return ctl.Add(ctx, patchFromFlags(cmd))
		}),
	}

	updateCmd = &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, ctl *control.Controller, cmd *cobra.Command, args []string) error {
			return ctl.Update(ctx, args[0], patchFromFlags(cmd))
		}),
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, ctl *control.Controller, cmd *cobra.Command, args []string) error {
			if !assumeYes && !control.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete alarm "+args[0]+"?") {
				return errAborted
			}

			return ctl.Delete(ctx, args[0])
		}),
	}

	toggleCmd = &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, ctl *control.Controller, _ *cobra.Command, args []string) error {
			return ctl.Toggle(ctx, args[0])
		}),
	}

	nextCmd = &cobra.Command{
		Use:   "next [id]",
		Short: "Show when alarms ring next.",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, ctl *control.Controller, _ *cobra.Command, args []string) error {
			var id string
			if len(args) > 0 {
				id = args[0]
			}

			return ctl.Next(ctx, id)
		}),
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the engine state and pending firings.",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, ctl *control.Controller, _ *cobra.Command, _ []string) error {
			return ctl.Status(ctx)
		}),
	}
)

// commandFunc is a subcommand body with a connected controller.
type commandFunc func(ctx context.Context, ctl *control.Controller, cmd *cobra.Command, args []string) error

// run connects to alarmd for the duration of fn.
func run(fn commandFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		client, closeClient, err := control.Connect(ctx, &control.Options{
			ConfigPath:    configPath,
			ServerAddress: serverAddress,
		})
		if err != nil {
			return err
		}

		defer func() {
			_ = closeClient()
		}()

		return fn(ctx, control.New(client, cmd.OutOrStdout()), cmd, args)
	}
}

// patchFromFlags collects the alarm flags that were given explicitly.
func patchFromFlags(cmd *cobra.Command) control.Patch {
	var patch control.Patch

	flags := cmd.Flags()

	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}

		value, _ := flags.GetString(name)

		return &value
	}

	patch.Time = stringFlag("time")
	patch.Days = stringFlag("days")
	patch.Name = stringFlag("name")
	patch.Color = stringFlag("color")
	patch.Sound = stringFlag("sound")
	patch.URL = stringFlag("url")

	switch {
	case flags.Changed("enabled"):
		enabled, _ := flags.GetBool("enabled")
		patch.Enabled = &enabled
	case flags.Changed("disabled"):
		disabled, _ := flags.GetBool("disabled")
		enabled := !disabled
		patch.Enabled = &enabled
	}

	return patch
}

// addAlarmFlags registers the alarm field flags on cmd.
func addAlarmFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("time", "t", "", "time of day as HH:MM")
	cmd.Flags().StringP("days", "d", "", "days, e.g. mon,wed,fri or weekdays, weekends, daily, none")
	cmd.Flags().StringP("name", "n", "", "alarm label")
	cmd.Flags().String("color", "", "display color as #RRGGBB or #AARRGGBB")
	cmd.Flags().String("sound", "", "local sound file, empty to clear")
	cmd.Flags().String("url", "", "remote sound URL, empty to clear")
	cmd.Flags().Bool("enabled", true, "enable the alarm")
	cmd.Flags().Bool("disabled", false, "disable the alarm")
	cmd.MarkFlagsMutuallyExclusive("enabled", "disabled")
}

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "alarmd address, overrides the configuration")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	addAlarmFlags(addCmd)
	addAlarmFlags(updateCmd)

	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "delete without asking")

	rootCmd.AddCommand(listCmd, addCmd, updateCmd, deleteCmd, toggleCmd, nextCmd, statusCmd)
}
