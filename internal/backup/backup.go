package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	goupdate "github.com/doitdistributed/go-update"
)

const (
	// bakInfix separates the target name from the timestamp suffix.
	bakInfix = ".bak."

	// timestampLayout is the fixed-width, lexicographically sortable stamp.
	timestampLayout = "20060102150405"

	// executableMode is re-applied to the target when a backup is restored.
	executableMode os.FileMode = 0o755
)

var (
	// ErrNoBackups indicates the catalog for a target is empty.
	ErrNoBackups = errors.New("no backups found")

	// ErrCopyFailed indicates a restore could not write the target.
	ErrCopyFailed = errors.New("restore copy failed")
)

// Record describes one timestamped backup of a target file.
type Record struct {
	// Path is the backup file location.
	Path string
	// Target is the file the backup was taken from.
	Target string
	// Stamp is the YYYYMMDDHHMMSS suffix.
	Stamp string
}

// Name returns the backup path for the target at the given time.
func Name(target string, now time.Time) string {
	return target + bakInfix + now.Format(timestampLayout)
}

// DisplayTime renders the stamp for humans, falling back to the raw stamp.
func (r Record) DisplayTime() string {
	stamp, err := time.Parse(timestampLayout, r.Stamp)
	if err != nil {
		return r.Stamp
	}

	return stamp.Format("2006-01-02 15:04:05")
}

// Create copies the target to a new timestamped backup beside it, preserving
// the target's permission bits. The backup set grows without bound; nothing
// is pruned.
func Create(target string) (*Record, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}

	now := time.Now()

	rec := &Record{
		Path:   Name(target, now),
		Target: target,
		Stamp:  now.Format(timestampLayout),
	}

	in, err := os.Open(filepath.Clean(target))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(rec.Path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return nil, fmt.Errorf("create backup %s: %w", rec.Path, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return nil, fmt.Errorf("copy %s to %s: %w", target, rec.Path, err)
	}

	if err = out.Close(); err != nil {
		return nil, fmt.Errorf("close backup %s: %w", rec.Path, err)
	}

	return rec, nil
}

// List returns the backups of the target, newest first. The fixed-width
// timestamp suffix makes a descending lexicographic sort correct. Files with
// an unparsable suffix are ignored.
func List(target string) ([]Record, error) {
	dir := filepath.Dir(target)
	prefix := filepath.Base(target) + bakInfix

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	records := make([]Record, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}

		stamp := name[len(prefix):]
		if _, err := time.Parse(timestampLayout, stamp); err != nil {
			continue
		}

		records = append(records, Record{
			Path:   filepath.Join(dir, name),
			Target: target,
			Stamp:  stamp,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Stamp > records[j].Stamp
	})

	return records, nil
}

// Restore copies the backup contents back onto the target atomically and
// re-applies the executable permission bits.
func Restore(rec *Record) error {
	data, err := os.ReadFile(filepath.Clean(rec.Path))
	if err != nil {
		return fmt.Errorf("read backup %s: %w", rec.Path, err)
	}

	options := goupdate.Options{
		TargetPath: rec.Target,
		TargetMode: executableMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("restore %s: %w: %w", rec.Target, ErrCopyFailed, err)
	}

	// Apply leaves the previous contents beside the target.
	oldName := rec.Target + ".old"
	if _, err = os.Stat(oldName); err == nil {
		_ = os.Remove(oldName)
	}

	return nil
}

// WriteAtomic replaces the file at path through a temporary file and a rename
// in the same directory, so readers never observe a partial write.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()

	defer func() {
		// Best-effort cleanup; a no-op once the rename has happened.
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync %s: %w", tmpName, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err = os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}

	return nil
}
