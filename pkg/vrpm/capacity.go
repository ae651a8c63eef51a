package vrpm

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// TreeSize returns the total size in bytes of all regular files under
// root.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", root, err)
	}
	return total, nil
}

// StatfsFunc returns the available bytes on the filesystem holding
// path.
type StatfsFunc func(path string) (int64, error)

// RAMAvailable reports free space on the filesystem containing path
// via statfs.
func RAMAvailable(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// CapacityReport compares the profile size against free space on the
// RAM filesystem.
type CapacityReport struct {
	ProfileBytes   int64
	AvailableBytes int64
	RequiredBytes  int64
	Factor         float64
	OK             bool
}

// Err returns ErrCapacityInsufficient when the report is not ok.
func (r CapacityReport) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: profile needs %d bytes, %d available",
		ErrCapacityInsufficient, r.RequiredBytes, r.AvailableBytes)
}

// CapacityChecker verifies that the RAM filesystem can hold the profile
// with headroom for growth while mounted.
type CapacityChecker struct {
	// Statfs probes free space. Defaults to RAMAvailable.
	Statfs StatfsFunc

	// Logger receives check details.
	Logger zerolog.Logger

	cfg Config
}

// NewCapacityChecker creates a checker for cfg.
func NewCapacityChecker(cfg Config) *CapacityChecker {
	return &CapacityChecker{
		Statfs: RAMAvailable,
		Logger: DefaultLogger(),
		cfg:    cfg,
	}
}

// Check sizes the profile and compares it against the free space on
// the filesystem that will host the mirror. required is
// ceil(factor * profileBytes) and equality counts as ok. If free space
// cannot be determined the check fails closed.
func (c *CapacityChecker) Check() (CapacityReport, error) {
	size, err := TreeSize(c.cfg.ProfileDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CapacityReport{}, fmt.Errorf("%w: %s", ErrProfileNotFound, c.cfg.ProfileDir)
		}
		return CapacityReport{}, err
	}

	report := CapacityReport{
		ProfileBytes:  size,
		Factor:        c.cfg.CapacityFactor,
		RequiredBytes: int64(math.Ceil(c.cfg.CapacityFactor * float64(size))),
	}

	available, err := c.Statfs(c.ramHost())
	if err != nil {
		// Fail closed: an unprobeable RAM filesystem never passes.
		return report, err
	}
	report.AvailableBytes = available
	report.OK = available >= report.RequiredBytes

	c.Logger.Debug().
		Int64("profile_bytes", report.ProfileBytes).
		Int64("available_bytes", report.AvailableBytes).
		Int64("required_bytes", report.RequiredBytes).
		Bool("ok", report.OK).
		Msg("capacity checked")
	return report, nil
}

// ramHost is the path probed for free space: the RAM directory when it
// already exists, otherwise its parent.
func (c *CapacityChecker) ramHost() string {
	if _, err := os.Stat(c.cfg.RAMDir); err == nil {
		return c.cfg.RAMDir
	}
	return filepath.Dir(c.cfg.RAMDir)
}
