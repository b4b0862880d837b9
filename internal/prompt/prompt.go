package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raven-assist/raven-setup/internal/backup"
)

// ErrInvalidSelection indicates the answer was not one of the offered
// options. The caller decides whether to re-prompt; this package never does.
var ErrInvalidSelection = errors.New("invalid selection")

// Prompter asks the operator to choose between alternatives.
type Prompter interface {
	// ChooseBrowser picks one of the candidate executables. An empty
	// candidate list yields an empty choice without error.
	ChooseBrowser(candidates []string) (string, error)
	// SelectBackup picks an index into records, which are listed newest
	// first. An empty answer selects the newest.
	SelectBackup(records []backup.Record) (int, error)
}

// Console prompts on an interactive terminal. Prompts go to out, which is
// expected to be stdout; diagnostics stay on the logger.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole returns a console prompter reading answers from in.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// ChooseBrowser implements Prompter. A single candidate is taken without
// asking.
func (c *Console) ChooseBrowser(candidates []string) (string, error) {
	switch len(candidates) {
	case 0:
		return "", nil
	case 1:
		return candidates[0], nil
	}

	fmt.Fprintln(c.out, "Several browsers were found:")

	for i, candidate := range candidates {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, candidate)
	}

	fmt.Fprint(c.out, "Select a browser [1]: ")

	n, err := c.readSelection(len(candidates))
	if err != nil {
		return "", err
	}

	return candidates[n-1], nil
}

// SelectBackup implements Prompter.
func (c *Console) SelectBackup(records []backup.Record) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("no backups to choose from: %w", ErrInvalidSelection)
	}

	fmt.Fprintln(c.out, "Available backups, newest first:")

	for i, rec := range records {
		fmt.Fprintf(c.out, "  %d) %s  %s\n", i+1, rec.DisplayTime(), rec.Path)
	}

	fmt.Fprint(c.out, "Select a backup to restore [1]: ")

	n, err := c.readSelection(len(records))
	if err != nil {
		return 0, err
	}

	return n - 1, nil
}

// readSelection reads a 1-based answer. An empty answer means the first
// option.
func (c *Console) readSelection(max int) (int, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read selection: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", line, ErrInvalidSelection)
	}

	if n < 1 || n > max {
		return 0, fmt.Errorf("%d is out of range 1..%d: %w", n, max, ErrInvalidSelection)
	}

	return n, nil
}

// NonInteractive answers every prompt with the first option, for runs
// without a terminal.
type NonInteractive struct{}

// ChooseBrowser implements Prompter.
func (NonInteractive) ChooseBrowser(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	return candidates[0], nil
}

// SelectBackup implements Prompter. The newest backup is selected.
func (NonInteractive) SelectBackup(records []backup.Record) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("no backups to choose from: %w", ErrInvalidSelection)
	}

	return 0, nil
}
