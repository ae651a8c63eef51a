package vrpm

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"
)

// BackupRecord describes one archive in the backup directory.
type BackupRecord struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Selector picks one record from a newest-first listing. The index is
// 1-based to match the numbering shown to the operator; cancelled
// reports that the operator backed out without choosing.
type Selector func(records []BackupRecord) (index int, cancelled bool, err error)

// RestoreEngine lists backup archives and extracts them over the
// RAM-resident profile. Extraction is an overlay: archived entries
// overwrite their counterparts, files created since the backup are
// left alone.
type RestoreEngine struct {
	// Probe derives the current mount state.
	Probe MountProbe

	Logger zerolog.Logger

	cfg Config
}

func NewRestoreEngine(cfg Config) *RestoreEngine {
	return &RestoreEngine{
		Probe:  DefaultMountProbe(),
		Logger: DefaultLogger(),
		cfg:    cfg,
	}
}

// List reads the backup directory and returns its archives newest
// first. The directory is re-read on every call; a missing directory
// is an empty listing, not an error.
func (r *RestoreEngine) List() ([]BackupRecord, error) {
	return listBackups(r.cfg)
}

func listBackups(cfg Config) ([]BackupRecord, error) {
	entries, err := os.ReadDir(cfg.BackupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var records []BackupRecord
	prefix := cfg.BackupPrefix + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		records = append(records, BackupRecord{
			Name:    name,
			Path:    filepath.Join(cfg.BackupDir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ModTime.Equal(records[j].ModTime) {
			return records[i].ModTime.After(records[j].ModTime)
		}
		return records[i].Name > records[j].Name
	})
	return records, nil
}

// Latest restores the newest archive. The profile must be mounted so
// the overlay lands on the live RAM copy and not a shadowed directory.
func (r *RestoreEngine) Latest(ctx context.Context, onProgress ProgressFunc) (BackupRecord, error) {
	records, err := r.ready()
	if err != nil {
		return BackupRecord{}, err
	}
	rec := records[0]
	if err := r.extract(ctx, rec.Path, onProgress); err != nil {
		return BackupRecord{}, err
	}
	r.Logger.Info().Str("backup", rec.Name).Msg("backup restored")
	return rec, nil
}

// Selected restores the archive picked by sel. A cancelled selection
// is a successful non-restore, reported through the second return.
func (r *RestoreEngine) Selected(ctx context.Context, sel Selector, onProgress ProgressFunc) (BackupRecord, bool, error) {
	records, err := r.ready()
	if err != nil {
		return BackupRecord{}, false, err
	}
	index, cancelled, err := sel(records)
	if err != nil {
		return BackupRecord{}, false, err
	}
	if cancelled {
		r.Logger.Info().Msg("restore cancelled")
		return BackupRecord{}, true, nil
	}
	if index < 1 || index > len(records) {
		return BackupRecord{}, false, fmt.Errorf("%w: %d of %d", ErrInvalidSelection, index, len(records))
	}
	rec := records[index-1]
	if err := r.extract(ctx, rec.Path, onProgress); err != nil {
		return BackupRecord{}, false, err
	}
	r.Logger.Info().Str("backup", rec.Name).Msg("backup restored")
	return rec, false, nil
}

// Clean deletes every archive except the newest and returns the
// removed records. Zero or one archive is a no-op success.
func (r *RestoreEngine) Clean() ([]BackupRecord, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	removed := records[1:]
	for _, rec := range removed {
		if err := os.Remove(rec.Path); err != nil {
			return nil, fmt.Errorf("clean backups: %w", err)
		}
	}
	r.Logger.Info().Int("removed", len(removed)).Str("kept", records[0].Name).Msg("old backups removed")
	return removed, nil
}

// Purge deletes every archive and removes the backup directory when
// that leaves it empty.
func (r *RestoreEngine) Purge() ([]BackupRecord, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := os.Remove(rec.Path); err != nil {
			return nil, fmt.Errorf("purge backups: %w", err)
		}
	}
	if leftover, err := os.ReadDir(r.cfg.BackupDir); err == nil && len(leftover) == 0 {
		if err := os.Remove(r.cfg.BackupDir); err != nil {
			return nil, fmt.Errorf("purge backups: %w", err)
		}
	}
	r.Logger.Info().Int("removed", len(records)).Msg("backups purged")
	return records, nil
}

func (r *RestoreEngine) ready() ([]BackupRecord, error) {
	mounted, err := r.Probe(r.cfg.ProfileDir)
	if err != nil {
		return nil, err
	}
	if !mounted {
		return nil, fmt.Errorf("%w: %s is not mounted", ErrRAMNotActive, r.cfg.ProfileDir)
	}
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBackupsFound, r.cfg.BackupDir)
	}
	return records, nil
}

func (r *RestoreEngine) extract(ctx context.Context, archive string, onProgress ProgressFunc) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", filepath.Base(archive), err)
	}
	defer func() { _ = zr.Close() }()
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	var total int64
	for _, f := range zr.File {
		if f.FileInfo().Mode().IsRegular() {
			total += int64(f.UncompressedSize64)
		}
	}
	meter := NewMeter(total, onProgress)

	type dirTime struct {
		path string
		mod  time.Time
	}
	var dirTimes []dirTime
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := entryPath(r.cfg.RAMDir, f.Name)
		if err != nil {
			return err
		}
		mode := f.FileInfo().Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, mode.Perm()); err != nil {
				return fmt.Errorf("restore %s: %w", f.Name, err)
			}
			dirTimes = append(dirTimes, dirTime{path: target, mod: f.Modified})
		case mode&fs.ModeSymlink != 0:
			if err := r.extractSymlink(f, target); err != nil {
				return fmt.Errorf("restore %s: %w", f.Name, err)
			}
		default:
			if err := r.extractFile(f, target, meter); err != nil {
				if errors.Is(err, zip.ErrAlgorithm) {
					return fmt.Errorf("%w: cannot decompress %s", ErrArchiverUnavailable, f.Name)
				}
				return fmt.Errorf("restore %s: %w", f.Name, err)
			}
		}
	}

	// Directory mtimes go on last; writing the files above would have
	// disturbed them otherwise.
	for _, dt := range dirTimes {
		if err := os.Chtimes(dt.path, dt.mod, dt.mod); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	meter.Finish()
	return nil
}

func (r *RestoreEngine) extractFile(f *zip.File, target string, meter *Meter) error {
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return err
	}
	mode := f.FileInfo().Mode().Perm()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, meter.Count(in)); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(target, mode); err != nil {
		return err
	}
	return os.Chtimes(target, f.Modified, f.Modified)
}

func (r *RestoreEngine) extractSymlink(f *zip.File, target string) error {
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	linkTarget, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return os.Symlink(string(linkTarget), target)
}

// entryPath joins an archive entry name onto root, rejecting names
// that would escape it.
func entryPath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe entry path %q", name)
	}
	return filepath.Join(root, cleaned), nil
}
