package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds installer settings shared by the raven-setup binaries.
type Config struct {
	// Target is the path where the raven executable is installed.
	Target string `yaml:"target"`
	// Source is the raven source checkout used for local and built artifacts.
	Source string `yaml:"source"`
	// Artifact is the build output path, relative to Source unless absolute.
	Artifact string `yaml:"artifact"`
	// BuildCommand is run inside Source to produce the artifact.
	BuildCommand []string `yaml:"build_command"`
	// DownloadURL is the release artifact URL. Empty with DownloadURLSet
	// disables the download source entirely.
	DownloadURL string `yaml:"download_url"`
	// SHA256 is the expected artifact digest in hex. Empty skips verification.
	SHA256 string `yaml:"sha256"`
	// Home is the raven home directory holding config.toml and env.sh.
	Home string `yaml:"home"`
	// Timeout bounds a single artifact download.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadURLSet records that DownloadURL was explicitly provided, even if
	// empty, so the built-in default must not be applied. Not persisted.
	DownloadURLSet bool `yaml:"-"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "raven-setup.yaml"

	// DefaultTarget is where the raven executable is installed.
	DefaultTarget = "/usr/local/bin/raven"

	// DefaultArtifact is the build output path inside the source checkout.
	DefaultArtifact = "bin/raven"

	// DefaultTimeout is the default duration for a single download.
	DefaultTimeout = 5 * time.Minute

	// DefaultFilePermissions is the default file permission for written settings
	// and configuration documents.
	DefaultFilePermissions = 0o600

	// ConfigDocumentFilename is raven's structured configuration document inside Home.
	ConfigDocumentFilename = "config.toml"

	// EnvFilename is raven's environment-export file inside Home.
	EnvFilename = "env.sh"

	// HomeDirname is the default raven home directory under the user's home.
	HomeDirname = ".raven"
)

// Environment variables overriding the settings file.
const (
	// EnvDownloadURL overrides the release artifact URL. Present but empty
	// disables the download source.
	EnvDownloadURL = "RAVEN_DOWNLOAD_URL"
	// EnvSHA256 overrides the expected artifact digest.
	EnvSHA256 = "RAVEN_SHA256"
	// EnvHome overrides the raven home directory.
	EnvHome = "RAVEN_HOME"
)

// hexDigestLength is the length of a hex-encoded SHA-256 digest.
const hexDigestLength = 64

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidDigest is returned when the configured digest is not hex SHA-256.
	errInvalidDigest = errors.New("digest must be a 64-character hex SHA-256")
)

// defaultBuildCommand produces the artifact inside the source checkout.
func defaultBuildCommand() []string {
	return []string{"make", "build"}
}

// DefaultDownloadURL returns the canonical release asset URL for this platform.
func DefaultDownloadURL() string {
	return fmt.Sprintf(
		"https://github.com/raven-assist/raven/releases/latest/download/raven-%s-%s",
		runtime.GOOS, runtime.GOARCH,
	)
}

// DefaultHome returns the raven home directory under the user's home.
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return filepath.Join(home, HomeDirname), nil
}

// Load reads settings from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.DownloadURLSet = cfg.DownloadURL != ""

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but returns default settings
// when no settings file exists at the path.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnvironment overlays process environment overrides onto the settings.
// A present but empty RAVEN_DOWNLOAD_URL disables the download source.
func ApplyEnvironment(cfg *Config) {
	if v, ok := os.LookupEnv(EnvDownloadURL); ok {
		cfg.DownloadURL = strings.TrimSpace(v)
		cfg.DownloadURLSet = true
	}

	if v, ok := os.LookupEnv(EnvSHA256); ok {
		cfg.SHA256 = strings.TrimSpace(v)
	}

	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		cfg.Home = v
	}
}

// Validate checks the provided settings and fills in defaults for missing fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}

	if cfg.Source == "" {
		cfg.Source = "."
	}

	if cfg.Artifact == "" {
		cfg.Artifact = DefaultArtifact
	}

	if len(cfg.BuildCommand) == 0 {
		cfg.BuildCommand = defaultBuildCommand()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Home == "" {
		home, err := DefaultHome()
		if err != nil {
			return err
		}

		cfg.Home = home
	}

	if cfg.DownloadURL == "" && !cfg.DownloadURLSet {
		cfg.DownloadURL = DefaultDownloadURL()
	}

	if cfg.DownloadURL != "" {
		if _, err := url.ParseRequestURI(cfg.DownloadURL); err != nil {
			return fmt.Errorf("invalid download URL: %w", err)
		}
	}

	if cfg.SHA256 != "" {
		digest := strings.TrimSpace(cfg.SHA256)
		if len(digest) != hexDigestLength {
			return fmt.Errorf("%q: %w", cfg.SHA256, errInvalidDigest)
		}

		if _, err := hex.DecodeString(digest); err != nil {
			return fmt.Errorf("%q: %w", cfg.SHA256, errInvalidDigest)
		}

		cfg.SHA256 = digest
	}

	return nil
}

// ArtifactPath returns the build output location, resolving relative
// artifact paths against the source checkout.
func (c *Config) ArtifactPath() string {
	artifact := filepath.FromSlash(c.Artifact)
	if filepath.IsAbs(artifact) {
		return artifact
	}

	return filepath.Join(c.Source, artifact)
}

// ConfigDocumentPath returns the location of raven's configuration document.
func (c *Config) ConfigDocumentPath() string {
	return filepath.Join(c.Home, ConfigDocumentFilename)
}

// EnvFilePath returns the location of raven's environment-export file.
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.Home, EnvFilename)
}
