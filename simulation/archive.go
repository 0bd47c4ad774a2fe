package simulation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archiver copies finished scenario directories from Src to Dst.
type Archiver struct {
	Src string
	Dst string
	// a scenario must have been finished for at least this long
	MinElapsed time.Duration
}

// copyDir copies a directory tree
func copyDir(src string, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, relPath)
		if info.IsDir() {
			return os.MkdirAll(targetPath, info.Mode())
		}
		return copyFile(path, targetPath)
	})
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// finishedAt returns when the scenario in folderPath finished. ok is false
// for running or unfinished scenarios.
func finishedAt(folderPath string) (at time.Time, ok bool, err error) {
	hasFinished := false
	hasLock := false

	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "finished") {
			hasFinished = true
			info, err := entry.Info()
			if err != nil {
				return time.Time{}, false, err
			}
			// no creation time in the standard library, mtime is close enough
			at = info.ModTime()
		}
		if strings.HasPrefix(name, "lock") {
			hasLock = true
		}
	}
	return at, hasFinished && !hasLock, nil
}

func (a *Archiver) shouldCopyFolder(name string) (bool, error) {
	at, ok, err := finishedAt(filepath.Join(a.Src, name))
	if err != nil || !ok {
		return false, err
	}
	if time.Since(at) <= a.MinElapsed {
		return false, nil
	}

	// already archived
	if _, done, err := finishedAt(filepath.Join(a.Dst, name)); err == nil && done {
		return false, nil
	}
	return true, nil
}

// ArchiveOnce scans Src once and returns the names of the copied scenarios.
func (a *Archiver) ArchiveOnce() ([]string, error) {
	entries, err := os.ReadDir(a.Src)
	if err != nil {
		return nil, err
	}

	var copied []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := a.shouldCopyFolder(entry.Name())
		if err != nil {
			slog.Warn("failed to inspect scenario", "name", entry.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}

		targetPath := filepath.Join(a.Dst, entry.Name())
		slog.Info("archiving scenario", "name", entry.Name(), "target", targetPath)
		partial := targetPath + ".partial"
		if err := os.RemoveAll(partial); err != nil {
			return copied, err
		}
		if err := copyDir(filepath.Join(a.Src, entry.Name()), partial); err != nil {
			return copied, err
		}
		if err := os.RemoveAll(targetPath); err != nil {
			return copied, err
		}
		if err := os.Rename(partial, targetPath); err != nil {
			return copied, err
		}
		copied = append(copied, entry.Name())
	}
	return copied, nil
}

// Watch calls ArchiveOnce every interval until ctx is done.
func (a *Archiver) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.ArchiveOnce(); err != nil {
			slog.Error("archive pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
