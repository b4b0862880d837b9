package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raven-assist/raven-setup/internal/artifact"
	"github.com/raven-assist/raven-setup/internal/backup"
	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/envfile"
	"github.com/raven-assist/raven-setup/internal/installer"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/mcp"
	"github.com/raven-assist/raven-setup/internal/prompt"
	"github.com/raven-assist/raven-setup/internal/tomldoc"
)

// Environment keys the setup writes to env.sh for the assistant process.
const (
	EnvKeyAPIKey  = "RAVEN_API_KEY"
	EnvKeyBaseURL = "RAVEN_BASE_URL"
	EnvKeyModel   = "RAVEN_MODEL"

	// envKeyPrefix bounds the managed region of env.sh.
	envKeyPrefix = "RAVEN_"
)

// Options are inputs accepted by the setup entry point. Empty fields fall
// back to the settings file, the environment, and built-in defaults.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Target overrides where the binary is installed.
	Target string
	// SourceDir overrides the source checkout used for local artifacts.
	SourceDir string
	// DownloadURL overrides the release URL when DownloadURLSet is true.
	// An empty value with DownloadURLSet disables downloading.
	DownloadURL string
	// DownloadURLSet records that DownloadURL was given explicitly.
	DownloadURLSet bool
	// Digest overrides the expected artifact SHA-256.
	Digest string
	// Home overrides the raven home directory.
	Home string
	// ServerName names the tool-server section to write.
	ServerName string
	// PresetID selects the tool-server preset.
	PresetID string
	// Browser pins the browser executable instead of probing for one.
	Browser string
	// NoInput answers every prompt with its default.
	NoInput bool
	// EnvDirectives are the environment values to write to env.sh. A
	// directive with an empty value unsets the key.
	EnvDirectives []envfile.Directive
	// Prompter overrides the prompter; nil selects one based on NoInput.
	Prompter prompt.Prompter
}

// runner holds the state of a single setup execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg      *config.Config     // Effective settings after all overrides.
	opts     *Options           // Original inputs.
	resolver *artifact.Resolver // Locates the binary to install.
	prompter prompt.Prompter    // Collects operator decisions.

	installedFrom artifact.Source // Which resolution step produced the binary.
	backupPath    string          // Backup of the previous binary, if any.
	serverName    string          // Tool-server section that was written.
	browser       string          // Browser pinned for the tool server.
	envWritten    bool            // Whether env.sh was touched.
}

// Run executes the setup lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "raven-setup")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Setup run failed", "error", err)

		return err
	}

	logger.Info(ctx, "Setup completed")

	return nil
}

// newRunner loads the settings and applies the override chain: settings
// file, then environment, then explicit options.
func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	config.ApplyEnvironment(cfg)
	applyOptions(cfg, opts)

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	r := &runner{
		cfg:      cfg,
		opts:     opts,
		resolver: artifact.NewResolver(cfg),
		prompter: opts.Prompter,
	}

	if r.prompter == nil {
		if opts.NoInput {
			r.prompter = prompt.NonInteractive{}
		} else {
			r.prompter = prompt.NewConsole(os.Stdin, os.Stdout)
		}
	}

	return r, nil
}

// applyOptions overlays explicit command-line values onto the settings.
func applyOptions(cfg *config.Config, opts *Options) {
	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	if opts.SourceDir != "" {
		cfg.Source = opts.SourceDir
	}

	if opts.DownloadURLSet {
		cfg.DownloadURL = strings.TrimSpace(opts.DownloadURL)
		cfg.DownloadURLSet = true
	}

	if opts.Digest != "" {
		cfg.SHA256 = opts.Digest
	}

	if opts.Home != "" {
		cfg.Home = opts.Home
	}
}

// Run executes the workflow for this runner instance:
// 1) Resolve an installable binary.
// 2) Install it, backing up the previous one.
// 3) Write the tool-server section into config.toml.
// 4) Write the environment exports into env.sh.
// 5) Print what happened and what to do next.
func (r *runner) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Starting setup", "actor", detectActor(), "target", r.cfg.Target)

	art, err := r.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve artifact: %w", err)
	}

	if err = r.installArtifact(ctx, art); err != nil {
		return err
	}

	if err = r.configureServer(ctx); err != nil {
		return err
	}

	if err = r.configureEnvironment(ctx); err != nil {
		return err
	}

	r.printNextSteps(ctx)

	return nil
}

// installArtifact places the resolved binary at the target path.
func (r *runner) installArtifact(ctx context.Context, art *artifact.Artifact) error {
	logger.InfoKV(ctx, "Installing binary",
		"source", string(art.Source), "target", r.cfg.Target)

	result, err := installer.Install(ctx, &installer.Options{
		SourcePath: art.Path,
		TargetPath: r.cfg.Target,
		Digest:     art.Digest,
	})
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			logger.Warnf(ctx,
				"No permission to write '%s', re-run with sudo or pick another --target",
				r.cfg.Target)
		}

		return fmt.Errorf("install binary: %w", err)
	}

	r.installedFrom = art.Source
	r.backupPath = result.BackupPath

	return nil
}

// configureServer writes the tool-server section into raven's configuration
// document.
func (r *runner) configureServer(ctx context.Context) error {
	serverName := r.opts.ServerName
	if serverName == "" {
		serverName = mcp.DefaultServerName
	}

	presetID := r.opts.PresetID
	if presetID == "" {
		presetID = mcp.DefaultPresetID
	}

	preset, err := mcp.FindPreset(presetID)
	if err != nil {
		return err
	}

	browser, err := r.chooseBrowser(ctx)
	if err != nil {
		return err
	}

	body, err := preset.ServerConfig(browser).RenderSectionBody()
	if err != nil {
		return err
	}

	path := r.cfg.ConfigDocumentPath()

	current, exists, err := readDocument(path)
	if err != nil {
		return err
	}

	merged, err := tomldoc.MergeSection(current, mcp.SectionName(serverName), body)
	if err != nil {
		return fmt.Errorf("update %s: %w", config.ConfigDocumentFilename, err)
	}

	if _, err = writeDocument(ctx, path, exists, current, merged); err != nil {
		return err
	}

	r.serverName = serverName
	r.browser = browser

	return nil
}

// chooseBrowser returns the browser executable for the tool server, asking
// the operator when several are installed.
func (r *runner) chooseBrowser(ctx context.Context) (string, error) {
	if r.opts.Browser != "" {
		return r.opts.Browser, nil
	}

	candidates := mcp.BrowserCandidates()
	if len(candidates) == 0 {
		logger.Info(ctx, "No Chrome-compatible browser found, the server will use its own discovery")

		return "", nil
	}

	choice, err := r.prompter.ChooseBrowser(candidates)
	if err != nil {
		return "", fmt.Errorf("choose browser: %w", err)
	}

	return choice, nil
}

// configureEnvironment writes the supplied environment values into env.sh,
// carrying over the values already managed there so setting one key does not
// drop the others.
func (r *runner) configureEnvironment(ctx context.Context) error {
	if len(r.opts.EnvDirectives) == 0 {
		logger.Debug(ctx, "No environment values supplied, leaving env.sh alone")

		return nil
	}

	path := r.cfg.EnvFilePath()

	current, exists, err := readDocument(path)
	if err != nil {
		return err
	}

	directives := append(envfile.Existing(current, envKeyPrefix), r.opts.EnvDirectives...)

	merged, err := envfile.Merge(current, envKeyPrefix, directives)
	if err != nil {
		return fmt.Errorf("update %s: %w", config.EnvFilename, err)
	}

	wrote, err := writeDocument(ctx, path, exists, current, merged)
	if err != nil {
		return err
	}

	r.envWritten = wrote

	return nil
}

// readDocument reads a configuration document, treating a missing file as an
// empty one.
func readDocument(path string) (contents string, exists bool, err error) {
	data, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		return string(data), true, nil
	case errors.Is(err, os.ErrNotExist):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
}

// writeDocument backs up and atomically replaces a configuration document.
// An unchanged document is left alone, so repeated runs produce no churn and
// a merge that changes nothing never creates the file. The returned flag
// reports whether the document was actually replaced.
func writeDocument(ctx context.Context, path string, exists bool, current, merged string) (bool, error) {
	if merged == current {
		if exists {
			logger.Infof(ctx, "'%s' is already up to date", path)
		}

		return false, nil
	}

	mode := os.FileMode(config.DefaultFilePermissions)

	if exists {
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}

		rec, err := backup.Create(path)
		if err != nil {
			return false, fmt.Errorf("back up %s: %w", path, err)
		}

		logger.Infof(ctx, "Saved previous version to '%s'", rec.Path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	if err := backup.WriteAtomic(path, []byte(merged), mode); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	logger.Infof(ctx, "Updated '%s'", path)

	return true, nil
}

// printNextSteps logs a human-readable summary and the follow-up actions.
func (r *runner) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("raven is ready:\n")
	builder.WriteString("installed ")
	builder.WriteString(r.cfg.Target)
	builder.WriteString(" (")
	builder.WriteString(string(r.installedFrom))
	builder.WriteString(")")

	if r.backupPath != "" {
		builder.WriteString(",\nprevious binary saved to ")
		builder.WriteString(r.backupPath)
	}

	builder.WriteString(",\ntool server \"")
	builder.WriteString(r.serverName)
	builder.WriteString("\" configured in ")
	builder.WriteString(r.cfg.ConfigDocumentPath())

	if r.browser != "" {
		builder.WriteString(" using ")
		builder.WriteString(r.browser)
	}

	if r.envWritten {
		builder.WriteString(",\nenvironment exports written to ")
		builder.WriteString(r.cfg.EnvFilePath())
		builder.WriteString("\n\nLoad them into your shell:\nsource ")
		builder.WriteString(r.cfg.EnvFilePath())
	}

	builder.WriteString("\n\nStart the assistant with: ")
	builder.WriteString(filepath.Base(r.cfg.Target))

	logger.Info(ctx, builder.String())
}

// cleanup removes staged downloads.
func (r *runner) cleanup(ctx context.Context) {
	if r.resolver != nil {
		r.resolver.Cleanup(ctx)
	}

	logger.Info(ctx, "The setup has been stopped")
}
