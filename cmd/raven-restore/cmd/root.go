package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/service/restore"
	"github.com/raven-assist/raven-setup/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the settings YAML file.
	configPath string
	// targetPath overrides the binary whose backups are restored.
	targetPath string
	// backupIndex selects a backup by its position in the listing.
	backupIndex int
	// listOnly prints the catalog without restoring anything.
	listOnly bool
	// noInput answers every prompt with its default.
	noInput bool
	// logLevel adjusts logging verbosity.
	logLevel string

	// rootCmd represents the base command that restores the binary from a
	// backup.
	rootCmd = &cobra.Command{
		Use:   "raven-restore",
		Short: "Restore the raven binary from a backup",
		Long: `Lists the timestamped backups of the installed raven binary and copies a
chosen one back onto the target, restoring its executable permissions.

Backups are created automatically by raven-setup before it replaces the
binary. The newest backup is restored unless another one is selected.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			options := &restore.Options{
				ConfigPath: configPath,
				Target:     targetPath,
				Index:      backupIndex,
				ListOnly:   listOnly,
				NoInput:    noInput,
			}

			return restore.Run(ctx, options)
		},
	}
)

// Execute runs the raven-restore CLI and exits with non-zero status on error.
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
	rootCmd.Flags().
		StringVarP(&targetPath, "target", "t", "", "binary whose backups are restored (default "+config.DefaultTarget+")")
	rootCmd.Flags().IntVarP(&backupIndex, "index", "i", 0, "1-based backup to restore, newest first (0 asks)")
	rootCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "list available backups and exit")
	rootCmd.Flags().BoolVar(&noInput, "no-input", false, "never prompt, restore the newest backup")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
