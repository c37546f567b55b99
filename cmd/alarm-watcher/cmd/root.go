package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-watcher/internal/config"
	"github.com/oshokin/alarm-watcher/internal/service/watcher"
	"github.com/oshokin/alarm-watcher/internal/version"
)

var (
	// configPath stores the path to the settings YAML file.
	configPath string
	// desktopMode runs the watcher as a desktop client.
	desktopMode bool
	// labSignalEnabled drives the laboratory signal relay.
	labSignalEnabled bool
	// logLevel overrides the configured logging level.
	logLevel string

	// rootCmd represents the base command for watching the alarm feed.
	rootCmd = &cobra.Command{
		Use:   "alarm-watcher",
		Short: "Watch the detector alarm feed and escalate stale alarms.",
		Long: `Background daemon that consumes alarm status changes from the message bus,
maintains the set of currently active alarms and escalates alarms that stay
unacknowledged past the configured timeouts.

Escalation channels are independent and individually disabled by a zero timeout:
desktop popups for operators, e-mail for the on-call list, and the laboratory
signal light driven over a serial relay. Server instances use all three;
desktop instances (--desktop) only show popups.

Send SIGHUP to re-read the settings file without restarting.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			watcherOptions := &watcher.Options{
				ConfigPath:       configPath,
				DesktopMode:      desktopMode,
				LabSignalEnabled: labSignalEnabled,
				LogLevel:         logLevel,
			}

			return watcher.Run(ctx, watcherOptions)
		},
	}
)

// Execute runs the alarm-watcher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	rootCmd.Flags().BoolVar(&desktopMode, "desktop", false, "run as a desktop client (popups only)")
	rootCmd.Flags().BoolVar(&labSignalEnabled, "lab-signal", false, "drive the laboratory signal relay")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override configured log level")
}
