package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raven-assist/raven-setup/internal/artifact"
	"github.com/raven-assist/raven-setup/internal/backup"
	"github.com/raven-assist/raven-setup/internal/checksum"
	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/envfile"
	"github.com/raven-assist/raven-setup/internal/service/setup"
)

// TestSetup_Run_DownloadsAndConfigures serves a release binary and manifest
// over HTTP and verifies the setup installs the binary, verifies it against
// the published checksum and writes the configuration. A second run must
// leave the configuration byte-identical.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestSetup_Run_DownloadsAndConfigures(t *testing.T) {
	dir := t.TempDir()

	binary := []byte("raven-release-binary")
	digest := sha256.Sum256(binary)
	digestHex := hex.EncodeToString(digest[:])

	// Serve the binary and the release manifest next to it.
	mux := http.NewServeMux()
	mux.HandleFunc("/files/raven-bin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(binary)
	})
	mux.HandleFunc("/files/"+artifact.ManifestFilename, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "version: 0.1.0\nfiles:\n  raven-bin: %s\n", digestHex)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	target := filepath.Join(dir, "bin", "raven")
	home := filepath.Join(dir, "home")
	source := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(source, 0o755))

	// Settings point at the test server; the empty source checkout and the
	// missing build tool force the download path.
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		Target:       target,
		Source:       source,
		BuildCommand: []string{"raven-no-such-build-tool"},
		DownloadURL:  ts.URL + "/files/raven-bin",
		Home:         home,
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	// Pin the environment overrides so ambient RAVEN_* values cannot
	// redirect the run; the URL override matches the settings on purpose.
	t.Setenv(config.EnvDownloadURL, ts.URL+"/files/raven-bin")
	t.Setenv(config.EnvSHA256, "")
	t.Setenv(config.EnvHome, home)

	options := &setup.Options{
		ConfigPath: cfgPath,
		Browser:    "/usr/bin/test-chrome",
		NoInput:    true,
		EnvDirectives: []envfile.Directive{
			{Key: setup.EnvKeyAPIKey, Value: "sk-integration"},
		},
	}

	require.NoError(t, setup.Run(context.Background(), options))

	// The downloaded binary was installed with executable permissions.
	installed, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, binary, installed)

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o111)

	// The tool-server section and the environment exports were written.
	document, err := os.ReadFile(filepath.Join(home, config.ConfigDocumentFilename))
	require.NoError(t, err)
	require.Contains(t, string(document), "[mcp_servers.chrome]")
	require.Contains(t, string(document), "chrome-devtools-mcp@latest")
	require.Contains(t, string(document), "/usr/bin/test-chrome")

	env, err := os.ReadFile(filepath.Join(home, config.EnvFilename))
	require.NoError(t, err)
	require.Contains(t, string(env), "export RAVEN_API_KEY='sk-integration'")

	// A second run replaces the binary again but leaves the configuration
	// untouched.
	require.NoError(t, setup.Run(context.Background(), options))

	documentAgain, err := os.ReadFile(filepath.Join(home, config.ConfigDocumentFilename))
	require.NoError(t, err)
	require.Equal(t, string(document), string(documentAgain))

	envAgain, err := os.ReadFile(filepath.Join(home, config.EnvFilename))
	require.NoError(t, err)
	require.Equal(t, string(env), string(envAgain))

	backups, err := backup.List(target)
	require.NoError(t, err)
	require.Len(t, backups, 1)
}

// TestSetup_Run_ChecksumMismatchAborts verifies a wrong digest stops the run
// before anything is installed or configured.
func TestSetup_Run_ChecksumMismatchAborts(t *testing.T) {
	dir := t.TempDir()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raven-release-binary"))
	}))
	defer ts.Close()

	target := filepath.Join(dir, "bin", "raven")
	home := filepath.Join(dir, "home")
	source := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(source, 0o755))

	wrong := sha256.Sum256([]byte("something-else"))

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		Target:       target,
		Source:       source,
		BuildCommand: []string{"raven-no-such-build-tool"},
		DownloadURL:  ts.URL + "/raven-bin",
		SHA256:       hex.EncodeToString(wrong[:]),
		Home:         home,
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	t.Setenv(config.EnvDownloadURL, ts.URL+"/raven-bin")
	t.Setenv(config.EnvSHA256, hex.EncodeToString(wrong[:]))
	t.Setenv(config.EnvHome, home)

	err := setup.Run(context.Background(), &setup.Options{
		ConfigPath: cfgPath,
		Browser:    "/usr/bin/test-chrome",
		NoInput:    true,
	})
	require.Error(t, err)

	var mismatch *checksum.MismatchError

	require.ErrorAs(t, err, &mismatch)
	require.NoFileExists(t, target)
	require.NoFileExists(t, filepath.Join(home, config.ConfigDocumentFilename))
}
