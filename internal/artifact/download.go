package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/raven-assist/raven-setup/internal/checksum"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/version"
)

var errBadHTTPStatus = errors.New("unexpected http status")

// Manifest describes a published release.
type Manifest struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Files maps file names to their hex-encoded SHA-256 digests.
	Files map[string]string `yaml:"files"`
}

// download fetches the release binary into a staging directory and verifies
// it when a digest is known. The digest comes from the settings when set,
// otherwise from the release manifest published beside the binary.
func (r *Resolver) download(ctx context.Context) (*Artifact, error) {
	if r.cfg.DownloadURL == "" {
		return nil, fmt.Errorf("no local artifact, no build, download disabled: %w", ErrNoSource)
	}

	stagingDir, err := os.MkdirTemp("", stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	r.stagingDir = stagingDir

	logger.Infof(ctx, "Downloading '%s'", r.cfg.DownloadURL)

	dest := filepath.Join(stagingDir, "raven")
	if err = r.fetchFile(ctx, r.cfg.DownloadURL, dest); err != nil {
		return nil, fmt.Errorf("download %s: %w", r.cfg.DownloadURL, err)
	}

	digest := r.cfg.SHA256
	if digest == "" {
		digest = r.manifestDigest(ctx)
	}

	if digest == "" {
		logger.Warnf(ctx, "No checksum published for '%s', skipping verification", r.cfg.DownloadURL)
	} else if err = checksum.VerifyFile(dest, digest); err != nil {
		return nil, fmt.Errorf("verify download: %w", err)
	}

	logger.InfoKV(ctx, "Downloaded artifact", "path", dest)

	return &Artifact{Path: dest, Source: SourceDownloaded, Digest: digest}, nil
}

// fetchFile streams the response for rawURL into dest.
func (r *Resolver) fetchFile(ctx context.Context, rawURL, dest string) error {
	response, err := r.get(ctx, rawURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return err
	}

	output, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, response.Body); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}

// get performs a GET and requires a 200 response.
func (r *Resolver) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := r.client.Do(req)
	if err != nil {
		return response, err
	}

	if response.StatusCode != http.StatusOK {
		return response, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return response, nil
}

// manifestDigest looks up the artifact's digest in the release manifest
// published next to it. A missing or unreadable manifest is not an error;
// verification is simply skipped.
func (r *Resolver) manifestDigest(ctx context.Context) string {
	manifestURL, name, err := manifestLocation(r.cfg.DownloadURL)
	if err != nil {
		return ""
	}

	response, err := r.get(ctx, manifestURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		logger.Debugf(ctx, "Release manifest not available: %v", err)

		return ""
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		logger.Debugf(ctx, "Release manifest not readable: %v", err)

		return ""
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		logger.Debugf(ctx, "Release manifest not parsable: %v", err)

		return ""
	}

	digest := manifest.Files[name]
	if digest == "" {
		logger.Debugf(ctx, "Release manifest has no checksum for '%s'", name)

		return ""
	}

	logger.Infof(ctx, "Using checksum from '%s'", ManifestFilename)

	return digest
}

// manifestLocation returns the manifest URL beside the artifact URL, plus the
// artifact's file name used as the manifest key.
func manifestLocation(artifactURL string) (manifestURL, name string, err error) {
	parsed, err := url.Parse(artifactURL)
	if err != nil {
		return "", "", err
	}

	name = path.Base(parsed.Path)
	parsed.Path = path.Join(path.Dir(parsed.Path), ManifestFilename)
	parsed.RawQuery = ""

	return parsed.String(), name, nil
}
