package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MismatchError reports a digest verification failure with both digests populated.
type MismatchError struct {
	// Path is the verified file.
	Path string
	// Expected is the configured hex digest.
	Expected string
	// Actual is the computed hex digest of the file contents.
	Actual string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, actual %s", e.Path, e.Expected, e.Actual)
}

// FileSHA256 returns the hex-encoded SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyFile compares the file digest against the expected hex digest,
// case-insensitively. An empty expected digest skips verification: callers
// that care must supply one. A mismatch is fatal and never retried.
func VerifyFile(path, expected string) error {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return nil
	}

	actual, err := FileSHA256(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(expected, actual) {
		return &MismatchError{Path: path, Expected: expected, Actual: actual}
	}

	return nil
}

// Decode returns the raw digest bytes for a hex digest string of either case.
func Decode(digest string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(digest)))
	if err != nil {
		return nil, fmt.Errorf("decode digest: %w", err)
	}

	return raw, nil
}
