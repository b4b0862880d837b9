package setup

import (
	"context"
	"fmt"

	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/mcp"
	"github.com/raven-assist/raven-setup/internal/tomldoc"
)

// RemoveOptions are inputs accepted by the tool-server removal entry point.
type RemoveOptions struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Home overrides the raven home directory.
	Home string
	// ServerName names the tool-server section to remove. Empty selects the
	// default server name.
	ServerName string
}

// RemoveServer deletes the named tool-server section from raven's
// configuration document, saving a backup of the previous version first.
// Removing a server that is not configured is a no-op, not an error.
func RemoveServer(ctx context.Context, opts *RemoveOptions) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "raven-setup")

	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return err
	}

	config.ApplyEnvironment(cfg)

	if opts.Home != "" {
		cfg.Home = opts.Home
	}

	if err = config.Validate(cfg); err != nil {
		return err
	}

	serverName := opts.ServerName
	if serverName == "" {
		serverName = mcp.DefaultServerName
	}

	path := cfg.ConfigDocumentPath()

	current, exists, err := readDocument(path)
	if err != nil {
		return err
	}

	section := mcp.SectionName(serverName)

	present, err := tomldoc.HasSection(current, section)
	if err != nil {
		return fmt.Errorf("update %s: %w", config.ConfigDocumentFilename, err)
	}

	if !present {
		logger.Infof(ctx, "No tool server %q found in '%s', nothing to remove", serverName, path)

		return nil
	}

	merged, err := tomldoc.RemoveSections(current, section)
	if err != nil {
		return fmt.Errorf("update %s: %w", config.ConfigDocumentFilename, err)
	}

	if _, err = writeDocument(ctx, path, exists, current, merged); err != nil {
		return err
	}

	logger.Infof(ctx, "Removed tool server %q from '%s'", serverName, path)

	return nil
}
