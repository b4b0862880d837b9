package installer

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	ps "github.com/mitchellh/go-ps"

	"github.com/raven-assist/raven-setup/internal/backup"
	"github.com/raven-assist/raven-setup/internal/checksum"
	"github.com/raven-assist/raven-setup/internal/logger"
)

// targetMode is applied to the installed binary.
const targetMode os.FileMode = 0o755

var (
	// ErrBackupFailed indicates the pre-install backup of the existing
	// target could not be taken. The target is left untouched.
	ErrBackupFailed = errors.New("backup failed")

	// ErrWriteFailed indicates the new binary could not be written to the
	// target path.
	ErrWriteFailed = errors.New("write failed")
)

// Options describe a single install of an artifact onto a target path.
type Options struct {
	// SourcePath is the resolved artifact to install.
	SourcePath string
	// TargetPath is the destination binary path.
	TargetPath string
	// Digest is an optional hex-encoded SHA-256 of the artifact. When set,
	// the write is verified against it before the target is replaced.
	Digest string
}

// Result reports what the install touched.
type Result struct {
	// BackupPath is the timestamped copy of the previous target, empty when
	// the target did not exist before.
	BackupPath string
}

// Install places the artifact at the target path. An existing target is
// backed up first; only after the backup succeeds is the target replaced.
// The replacement itself is atomic.
func Install(ctx context.Context, opts *Options) (*Result, error) {
	warnRunningProcesses(ctx, filepath.Base(opts.TargetPath))

	result := new(Result)

	_, err := os.Stat(opts.TargetPath)

	switch {
	case err == nil:
		rec, backupErr := backup.Create(opts.TargetPath)
		if backupErr != nil {
			return nil, fmt.Errorf("%s: %w: %w", opts.TargetPath, ErrBackupFailed, backupErr)
		}

		result.BackupPath = rec.Path

		logger.Infof(ctx, "Saved previous binary to '%s'", rec.Path)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("stat %s: %w: %w", opts.TargetPath, ErrBackupFailed, err)
	}

	data, err := os.ReadFile(filepath.Clean(opts.SourcePath))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w: %w", opts.SourcePath, ErrWriteFailed, err)
	}

	if err = ensureTarget(opts.TargetPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	options := goupdate.Options{
		TargetPath: opts.TargetPath,
		TargetMode: targetMode,
	}

	if opts.Digest != "" {
		sum, decodeErr := checksum.Decode(opts.Digest)
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteFailed, decodeErr)
		}

		options.Checksum = sum
		options.Hash = crypto.SHA256
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return nil, fmt.Errorf("install %s: %w: %w", opts.TargetPath, ErrWriteFailed, err)
	}

	// Apply keeps the replaced contents beside the target.
	oldName := opts.TargetPath + ".old"
	if _, err = os.Stat(oldName); err == nil {
		_ = os.Remove(oldName)
	}

	return result, nil
}

// ensureTarget creates the target's directory and an empty placeholder file
// when the target does not exist yet, so the atomic rename has something to
// swap out.
func ensureTarget(target string) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", target, err)
	}

	placeholder, err := os.Create(filepath.Clean(target))
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if err = placeholder.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	return nil
}

// warnRunningProcesses reports processes that share the target's executable
// name. The install still proceeds; a running copy keeps executing the old
// code until it is relaunched.
func warnRunningProcesses(ctx context.Context, name string) {
	pids, err := runningPIDs(name)
	if err != nil {
		logger.Debugf(ctx, "Process preflight skipped: %v", err)

		return
	}

	if len(pids) == 0 {
		return
	}

	logger.Warnf(ctx,
		"'%s' is currently running (PID %v); the new version takes effect after it is restarted",
		name, pids)
}

func runningPIDs(name string) ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var pids []int

	for _, process := range processes {
		if process.Executable() == name {
			pids = append(pids, process.Pid())
		}
	}

	return pids, nil
}
