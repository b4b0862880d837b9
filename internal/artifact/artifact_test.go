package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/raven-assist/raven-setup/internal/checksum"
	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/logger"
)

func digestOf(content string) string {
	hash := sha256.Sum256([]byte(content))

	return hex.EncodeToString(hash[:])
}

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)

	return logger.ToContext(context.Background(), zap.New(core).Sugar()), observed
}

func TestResolveLocal(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "bin", "raven"), []byte("prebuilt"), 0o755))

	resolver := NewResolver(&config.Config{
		Source:   source,
		Artifact: "bin/raven",
		Timeout:  time.Minute,
	})

	art, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceLocal, art.Source)
	require.Equal(t, filepath.Join(source, "bin", "raven"), art.Path)
	require.Empty(t, art.Digest)
}

func TestResolveBuild(t *testing.T) {
	t.Parallel()

	source := t.TempDir()

	resolver := NewResolver(&config.Config{
		Source:       source,
		Artifact:     "bin/raven",
		BuildCommand: []string{"sh", "-c", "mkdir -p bin && printf built > bin/raven"},
		Timeout:      time.Minute,
	})

	art, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceBuilt, art.Source)
	require.Empty(t, art.Digest)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	require.Equal(t, []byte("built"), data)
}

func TestResolveBuildFailureFallsBackToDownload(t *testing.T) {
	t.Parallel()

	content := "release-binary"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	resolver := NewResolver(&config.Config{
		Source:         t.TempDir(),
		Artifact:       "bin/raven",
		BuildCommand:   []string{"sh", "-c", "exit 1"},
		DownloadURL:    server.URL + "/raven-test",
		DownloadURLSet: true,
		Timeout:        time.Minute,
	})

	ctx, observed := observedContext()

	art, err := resolver.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceDownloaded, art.Source)

	var warned bool

	for _, entry := range observed.All() {
		if entry.Level == zapcore.WarnLevel && strings.Contains(entry.Message, "falling back to download") {
			warned = true
		}
	}

	require.True(t, warned, "expected a visible warning about the failed build")

	resolver.Cleanup(ctx)
}

func TestResolveDownloadUsesManifestDigest(t *testing.T) {
	t.Parallel()

	content := "release-binary"
	digest := digestOf(content)

	var userAgent string

	mux := http.NewServeMux()
	mux.HandleFunc("/releases/raven-test", func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(content))
	})
	mux.HandleFunc("/releases/"+ManifestFilename, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "version: 1.2.3\nfiles:\n  raven-test: %s\n", digest)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	resolver := NewResolver(&config.Config{
		Source:         t.TempDir(),
		Artifact:       "bin/raven",
		BuildCommand:   []string{"raven-no-such-build-tool"},
		DownloadURL:    server.URL + "/releases/raven-test",
		DownloadURLSet: true,
		Timeout:        time.Minute,
	})

	ctx := context.Background()

	art, err := resolver.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceDownloaded, art.Source)
	require.Equal(t, digest, art.Digest)
	require.True(t, strings.HasPrefix(userAgent, "raven-setup/"))

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	require.Equal(t, []byte(content), data)

	resolver.Cleanup(ctx)
	require.NoDirExists(t, filepath.Dir(art.Path))
}

func TestResolveDownloadDigestMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("release-binary"))
	}))
	defer server.Close()

	expected := digestOf("different-content")

	resolver := NewResolver(&config.Config{
		Source:         t.TempDir(),
		Artifact:       "bin/raven",
		BuildCommand:   []string{"raven-no-such-build-tool"},
		DownloadURL:    server.URL + "/raven-test",
		DownloadURLSet: true,
		SHA256:         expected,
		Timeout:        time.Minute,
	})

	ctx := context.Background()
	defer resolver.Cleanup(ctx)

	_, err := resolver.Resolve(ctx)
	require.Error(t, err)

	var mismatch *checksum.MismatchError

	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, expected, mismatch.Expected)
	require.Equal(t, digestOf("release-binary"), mismatch.Actual)
}

func TestResolveNoSource(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&config.Config{
		Source:         t.TempDir(),
		Artifact:       "bin/raven",
		BuildCommand:   []string{"raven-no-such-build-tool"},
		DownloadURL:    "",
		DownloadURLSet: true,
		Timeout:        time.Minute,
	})

	_, err := resolver.Resolve(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoSource)
}

func TestResolveDownloadBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resolver := NewResolver(&config.Config{
		Source:         t.TempDir(),
		Artifact:       "bin/raven",
		BuildCommand:   []string{"raven-no-such-build-tool"},
		DownloadURL:    server.URL + "/raven-test",
		DownloadURLSet: true,
		Timeout:        time.Minute,
	})

	ctx := context.Background()
	defer resolver.Cleanup(ctx)

	_, err := resolver.Resolve(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, errBadHTTPStatus)
}

func TestManifestLocation(t *testing.T) {
	t.Parallel()

	manifestURL, name, err := manifestLocation("https://example.com/releases/v1/raven-linux-amd64?token=abc")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/releases/v1/"+ManifestFilename, manifestURL)
	require.Equal(t, "raven-linux-amd64", name)
}
