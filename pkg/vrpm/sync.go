package vrpm

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// SyncEngine reconciles one directory tree onto another, the native
// equivalent of rsync -a --delete. Unchanged files are skipped by a
// size and mtime comparison, destination entries absent from the
// source are removed, and file modes and timestamps are preserved.
type SyncEngine struct {
	Logger zerolog.Logger
}

func NewSyncEngine(log zerolog.Logger) *SyncEngine {
	return &SyncEngine{Logger: log}
}

// Mirror makes dst an exact mirror of src. Progress is reported in
// bytes of regular-file content, counting skipped files as done so the
// fraction always reaches one.
func (s *SyncEngine) Mirror(ctx context.Context, src, dst string, onProgress ProgressFunc) error {
	total, err := TreeSize(src)
	if err != nil {
		return err
	}
	meter := NewMeter(total, onProgress)

	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("mirror %s: %w", dst, err)
	}

	seen := map[string]struct{}{}
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		seen[rel] = struct{}{}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return s.ensureDir(path, target)
		case d.Type()&fs.ModeSymlink != 0:
			return s.copySymlink(path, target)
		case d.Type().IsRegular():
			return s.copyFile(path, target, meter)
		default:
			s.Logger.Debug().Str("path", path).Str("type", d.Type().String()).Msg("skipping special file")
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("mirror %s: %w", src, err)
	}

	if err := s.prune(ctx, dst, seen); err != nil {
		return fmt.Errorf("mirror %s: %w", src, err)
	}

	// Directory mtimes are restored last so copies and deletions made
	// while descending do not disturb them.
	if err := s.restoreDirTimes(src, dst); err != nil {
		return fmt.Errorf("mirror %s: %w", src, err)
	}
	meter.Finish()
	return nil
}

func (s *SyncEngine) ensureDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if existing, err := os.Lstat(dst); err == nil && !existing.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

func (s *SyncEngine) copyFile(src, dst string, meter *Meter) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if existing, err := os.Lstat(dst); err == nil {
		if existing.Mode().IsRegular() &&
			existing.Size() == info.Size() &&
			existing.ModTime().Equal(info.ModTime()) {
			meter.Add(info.Size())
			return nil
		}
		if !existing.Mode().IsRegular() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, meter.Count(in)); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (s *SyncEngine) copySymlink(src, dst string) error {
	linkTarget, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if existing, err := os.Lstat(dst); err == nil {
		if existing.Mode()&fs.ModeSymlink != 0 {
			if current, err := os.Readlink(dst); err == nil && current == linkTarget {
				return nil
			}
		}
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	return os.Symlink(linkTarget, dst)
}

// prune removes destination entries with no source counterpart.
func (s *SyncEngine) prune(ctx context.Context, dst string, seen map[string]struct{}) error {
	return filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if _, ok := seen[rel]; ok {
			return nil
		}
		s.Logger.Debug().Str("path", path).Msg("removing extraneous entry")
		if err := os.RemoveAll(path); err != nil {
			return err
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}

func (s *SyncEngine) restoreDirTimes(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return os.Chtimes(filepath.Join(dst, rel), info.ModTime(), info.ModTime())
	})
}
