package artifact

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/logger"
)

// Source identifies where a resolved artifact came from.
type Source string

const (
	// SourceLocal is a binary already present in the source checkout.
	SourceLocal Source = "local"
	// SourceBuilt is a binary produced by running the build command.
	SourceBuilt Source = "built"
	// SourceDownloaded is a binary fetched from the release URL.
	SourceDownloaded Source = "downloaded"
)

const (
	// ManifestFilename is published beside release binaries and maps file
	// names to their hex-encoded SHA-256 digests.
	ManifestFilename = "raven-release.yaml"

	// stagingPattern names the temporary directory downloads land in.
	stagingPattern = "raven-setup-"
)

// ErrNoSource indicates that no artifact could be located: nothing was built,
// nothing was found in the source tree, and downloading is not possible.
var ErrNoSource = errors.New("no artifact source available")

// Artifact is a binary ready to be installed.
type Artifact struct {
	// Path is the local file holding the binary.
	Path string
	// Source records which resolution step produced the file.
	Source Source
	// Digest is the expected hex-encoded SHA-256 of the file. It is only
	// populated for downloads; local and built binaries are trusted as-is.
	Digest string
}

// Resolver locates an installable binary according to the settings.
type Resolver struct {
	cfg        *config.Config
	client     *http.Client
	stagingDir string
}

// NewResolver returns a resolver for the provided settings. The settings must
// have passed config.Validate.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Resolve returns an installable binary, preferring in order a binary already
// present in the source tree, a fresh local build, and the published release
// download. Only the downloaded form carries a digest to verify.
func (r *Resolver) Resolve(ctx context.Context) (*Artifact, error) {
	if art := r.local(ctx); art != nil {
		return art, nil
	}

	if art := r.build(ctx); art != nil {
		return art, nil
	}

	return r.download(ctx)
}

// local returns the artifact already sitting in the source tree, if any.
func (r *Resolver) local(ctx context.Context) *Artifact {
	path := r.cfg.ArtifactPath()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	logger.Infof(ctx, "Using existing artifact '%s'", path)

	return &Artifact{Path: path, Source: SourceLocal}
}

// build runs the configured build command inside the source checkout. Build
// problems are reported but never fatal; resolution falls through to the
// download step.
func (r *Resolver) build(ctx context.Context) *Artifact {
	command := r.cfg.BuildCommand
	if len(command) == 0 {
		return nil
	}

	if _, err := exec.LookPath(command[0]); err != nil {
		logger.Infof(ctx, "Build tool '%s' not found, skipping local build", command[0])

		return nil
	}

	logger.Infof(ctx, "Building artifact in '%s'", r.cfg.Source)

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = r.cfg.Source

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Warnf(ctx, "Building with '%s' failed, falling back to download: %v",
			strings.Join(command, " "), err)

		if len(output) > 0 {
			logger.Debugf(ctx, "Build output:\n%s", output)
		}

		return nil
	}

	path := r.cfg.ArtifactPath()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		logger.Warnf(ctx, "Build finished but '%s' was not produced, falling back to download", path)

		return nil
	}

	logger.Infof(ctx, "Built artifact '%s'", path)

	return &Artifact{Path: path, Source: SourceBuilt}
}

// Cleanup removes the staging directory left over from a download.
func (r *Resolver) Cleanup(ctx context.Context) {
	if r.stagingDir == "" {
		return
	}

	if _, err := os.Stat(r.stagingDir); err == nil {
		_ = os.RemoveAll(r.stagingDir)
	}

	logger.Debugf(ctx, "Removed staging directory '%s'", r.stagingDir)
}
