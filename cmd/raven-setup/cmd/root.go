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
	"github.com/raven-assist/raven-setup/internal/envfile"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/mcp"
	"github.com/raven-assist/raven-setup/internal/service/setup"
	"github.com/raven-assist/raven-setup/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the settings YAML file.
	configPath string
	// targetPath overrides where the binary is installed.
	targetPath string
	// sourceDir overrides the raven source checkout.
	sourceDir string
	// downloadURL overrides the release URL; set but empty disables downloading.
	downloadURL string
	// sha256Digest overrides the expected artifact digest.
	sha256Digest string
	// homeDir overrides the raven home directory.
	homeDir string
	// serverName names the tool-server section to write.
	serverName string
	// presetID selects the tool-server preset.
	presetID string
	// browserPath pins the browser executable instead of probing.
	browserPath string
	// noInput answers every prompt with its default.
	noInput bool
	// apiKey, baseURL and model are environment values for env.sh.
	apiKey  string
	baseURL string
	model   string
	// logLevel adjusts logging verbosity.
	logLevel string

	// rootCmd represents the base command that installs and configures raven.
	rootCmd = &cobra.Command{
		Use:   "raven-setup",
		Short: "Install the raven binary and configure the assistant",
		Long: `Installs the raven assistant and writes its configuration.

The binary is taken from the source checkout when it is already built there,
otherwise built with the build command, otherwise downloaded from the release
URL and verified against the published checksum. An existing binary is backed
up before it is replaced.

Configuration edits are surgical: only the owned tool-server section of
config.toml and the RAVEN_* exports of env.sh are rewritten. Everything else
in those files, including comments and formatting, survives byte for byte.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCommand *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			options := &setup.Options{
				ConfigPath:     configPath,
				Target:         targetPath,
				SourceDir:      sourceDir,
				DownloadURL:    downloadURL,
				DownloadURLSet: cobraCommand.Flags().Changed("url"),
				Digest:         sha256Digest,
				Home:           homeDir,
				ServerName:     serverName,
				PresetID:       presetID,
				Browser:        browserPath,
				NoInput:        noInput,
				EnvDirectives:  collectEnvDirectives(cobraCommand),
			}

			return setup.Run(ctx, options)
		},
	}

	// removeServerCmd deletes a tool-server section written by setup.
	removeServerCmd = &cobra.Command{
		Use:   "remove-server [name]",
		Short: "Remove a tool-server section from config.toml",
		Long: `Removes the named tool-server section from raven's config.toml, saving a
backup of the previous version first. The rest of the document is not
touched, and removing a server that is not configured does nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			name := mcp.DefaultServerName
			if len(args) == 1 {
				name = args[0]
			}

			return setup.RemoveServer(ctx, &setup.RemoveOptions{
				ConfigPath: configPath,
				Home:       homeDir,
				ServerName: name,
			})
		},
	}
)

// collectEnvDirectives turns explicitly set flags into env.sh directives.
// A flag set to an empty value unsets the key; an untouched flag leaves the
// current value alone.
func collectEnvDirectives(cobraCommand *cobra.Command) []envfile.Directive {
	var directives []envfile.Directive

	if cobraCommand.Flags().Changed("api-key") {
		directives = append(directives, envfile.Directive{Key: setup.EnvKeyAPIKey, Value: apiKey})
	}

	if cobraCommand.Flags().Changed("base-url") {
		directives = append(directives, envfile.Directive{Key: setup.EnvKeyBaseURL, Value: baseURL})
	}

	if cobraCommand.Flags().Changed("model") {
		directives = append(directives, envfile.Directive{Key: setup.EnvKeyModel, Value: model})
	}

	return directives
}

// Execute runs the raven-setup CLI and exits with non-zero status on error.
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
		StringVarP(&targetPath, "target", "t", "", "install path for the binary (default "+config.DefaultTarget+")")
	rootCmd.Flags().StringVarP(&sourceDir, "source", "s", "", "path to the raven source checkout")
	rootCmd.Flags().StringVar(&downloadURL, "url", "", "release artifact URL, empty disables downloading")
	rootCmd.Flags().StringVar(&sha256Digest, "sha256", "", "expected artifact SHA-256 in hex")
	rootCmd.Flags().StringVar(&homeDir, "home", "", "raven home directory (default ~/"+config.HomeDirname+")")
	rootCmd.Flags().StringVar(&serverName, "server-name", mcp.DefaultServerName, "name of the tool-server section")
	rootCmd.Flags().StringVar(&presetID, "preset", mcp.DefaultPresetID, "tool-server preset to apply")
	rootCmd.Flags().StringVar(&browserPath, "browser", "", "browser executable for the tool server")
	rootCmd.Flags().BoolVar(&noInput, "no-input", false, "never prompt, take defaults")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "API key exported as "+setup.EnvKeyAPIKey)
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL exported as "+setup.EnvKeyBaseURL)
	rootCmd.Flags().StringVar(&model, "model", "", "default model exported as "+setup.EnvKeyModel)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	// Only one command parses its flags per invocation, so sharing the
	// variables with the root command is safe.
	removeServerCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	removeServerCmd.Flags().StringVar(&homeDir, "home", "", "raven home directory (default ~/"+config.HomeDirname+")")
	removeServerCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(removeServerCmd)
}
