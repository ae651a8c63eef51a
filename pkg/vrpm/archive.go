package vrpm

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"
)

// backupTimeFormat names archives down to the second. Two backups
// within the same second resolve to the same name and the later one
// wins.
const backupTimeFormat = "2006-01-02_15-04-05"

// BackupArchiver writes zip snapshots of the RAM-resident profile.
type BackupArchiver struct {
	// Probe derives the current mount state.
	Probe MountProbe

	// Clock supplies the timestamp baked into archive names.
	Clock func() time.Time

	Logger zerolog.Logger

	cfg Config
}

func NewBackupArchiver(cfg Config) *BackupArchiver {
	return &BackupArchiver{
		Probe:  DefaultMountProbe(),
		Clock:  time.Now,
		Logger: DefaultLogger(),
		cfg:    cfg,
	}
}

// Create archives the RAM mirror into the backup directory and returns
// the archive path. The profile must be mounted; backing up the
// shadowed on-disk copy would snapshot stale data. A failed run leaves
// no partial archive behind.
func (a *BackupArchiver) Create(ctx context.Context, onProgress ProgressFunc) (string, error) {
	mounted, err := a.Probe(a.cfg.ProfileDir)
	if err != nil {
		return "", err
	}
	if !mounted {
		return "", fmt.Errorf("%w: %s is not mounted", ErrRAMNotActive, a.cfg.ProfileDir)
	}
	if _, err := flate.NewWriter(io.Discard, a.cfg.CompressionLevel); err != nil {
		return "", fmt.Errorf("%w: deflate level %d", ErrArchiverUnavailable, a.cfg.CompressionLevel)
	}

	total, err := TreeSize(a.cfg.RAMDir)
	if err != nil {
		return "", err
	}
	meter := NewMeter(total, onProgress)

	if err := os.MkdirAll(a.cfg.BackupDir, 0o700); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.zip", a.cfg.BackupPrefix, a.Clock().Format(backupTimeFormat))
	path := filepath.Join(a.cfg.BackupDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if err := a.writeTree(ctx, f, meter); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("create backup: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("create backup: %w", err)
	}
	meter.Finish()

	a.Logger.Info().Str("backup", path).Msg("backup created")
	return path, nil
}

func (a *BackupArchiver) writeTree(ctx context.Context, w io.Writer, meter *Meter) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.cfg.CompressionLevel)
	})

	root := a.cfg.RAMDir
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		switch {
		case d.IsDir():
			hdr.Name += "/"
			hdr.Method = zip.Store
			_, err := zw.CreateHeader(hdr)
			return err
		case d.Type()&fs.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr.Method = zip.Store
			entry, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			_, err = entry.Write([]byte(linkTarget))
			return err
		case d.Type().IsRegular():
			hdr.Method = zip.Deflate
			entry, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			in, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
			_, err = io.Copy(entry, meter.Count(in))
			return err
		default:
			a.Logger.Debug().Str("path", path).Str("type", d.Type().String()).Msg("skipping special file")
			return nil
		}
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}
