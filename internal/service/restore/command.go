package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raven-assist/raven-setup/internal/backup"
	"github.com/raven-assist/raven-setup/internal/config"
	"github.com/raven-assist/raven-setup/internal/logger"
	"github.com/raven-assist/raven-setup/internal/prompt"
)

// Options are inputs accepted by the restore entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Target overrides the binary whose backups are restored.
	Target string
	// Index selects a backup by its 1-based position in the newest-first
	// listing. Zero asks the operator.
	Index int
	// ListOnly prints the catalog and exits without restoring.
	ListOnly bool
	// NoInput answers every prompt with its default, the newest backup.
	NoInput bool
	// Prompter overrides the prompter; nil selects one based on NoInput.
	Prompter prompt.Prompter
	// Out receives the listing and the summary; nil means stdout.
	Out io.Writer
}

// runner holds the state of a single restore execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg      *config.Config
	opts     *Options
	prompter prompt.Prompter
	out      io.Writer
}

// Run executes the restore lifecycle and is the public entry point for the
// CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "raven-restore")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Restore run failed", "error", err)

		return err
	}

	return nil
}

func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	config.ApplyEnvironment(cfg)

	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	r := &runner{
		cfg:      cfg,
		opts:     opts,
		prompter: opts.Prompter,
		out:      opts.Out,
	}

	if r.prompter == nil {
		if opts.NoInput {
			r.prompter = prompt.NonInteractive{}
		} else {
			r.prompter = prompt.NewConsole(os.Stdin, os.Stdout)
		}
	}

	if r.out == nil {
		r.out = os.Stdout
	}

	return r, nil
}

// Run lists the target's backups and restores the selected one.
func (r *runner) Run(ctx context.Context) error {
	records, err := backup.List(r.cfg.Target)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return fmt.Errorf("%s: %w", r.cfg.Target, backup.ErrNoBackups)
	}

	if r.opts.ListOnly {
		r.printRecords(records)

		return nil
	}

	index, err := r.selectIndex(records)
	if err != nil {
		return err
	}

	rec := records[index]

	logger.InfoKV(ctx, "Restoring backup", "path", rec.Path, "target", rec.Target)

	if err = backup.Restore(&rec); err != nil {
		if errors.Is(err, os.ErrPermission) {
			logger.Warnf(ctx, "No permission to write '%s', re-run with sudo", rec.Target)
		}

		return err
	}

	fmt.Fprintf(r.out, "Restored %s from %s (%s)\n", rec.Target, rec.Path, rec.DisplayTime())

	logger.Info(ctx, "Restore completed")

	return nil
}

// selectIndex resolves the record to restore, either from the explicit flag
// or by asking the operator. A bad explicit index is fatal; there is no
// re-prompting.
func (r *runner) selectIndex(records []backup.Record) (int, error) {
	if n := r.opts.Index; n != 0 {
		if n < 1 || n > len(records) {
			return 0, fmt.Errorf("%d is out of range 1..%d: %w",
				n, len(records), prompt.ErrInvalidSelection)
		}

		return n - 1, nil
	}

	index, err := r.prompter.SelectBackup(records)
	if err != nil {
		return 0, fmt.Errorf("select backup: %w", err)
	}

	return index, nil
}

func (r *runner) printRecords(records []backup.Record) {
	fmt.Fprintf(r.out, "Backups of %s, newest first:\n", r.cfg.Target)

	for i, rec := range records {
		fmt.Fprintf(r.out, "  %d) %s  %s\n", i+1, rec.DisplayTime(), rec.Path)
	}
}
