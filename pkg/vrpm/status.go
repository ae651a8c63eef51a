package vrpm

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// StaleAfter is the age past which the newest backup is flagged stale.
const StaleAfter = 7 * 24 * time.Hour

// Status is a point-in-time snapshot of the profile, the browser
// process and the backup directory. Nothing in it is persisted; every
// Report derives it fresh.
type Status struct {
	// RAMActive reports whether the profile directory is bind-mounted.
	RAMActive bool

	// StaleMirror flags a populated RAM mirror without a mount, the
	// footprint of an interrupted load.
	StaleMirror bool

	// ProcessActive reports whether the browser process is running.
	ProcessActive bool

	// BackupDirExists reports whether the backup directory has been
	// created yet.
	BackupDirExists bool

	// Backups lists the archives newest first.
	Backups []BackupRecord

	// Latest points at the newest archive, nil when there are none.
	Latest *BackupRecord

	// LatestAge is the age of the newest archive.
	LatestAge time.Duration

	// LatestStale flags a newest archive older than StaleAfter.
	LatestStale bool
}

// StatusReporter aggregates the read-only state shown by the status
// command.
type StatusReporter struct {
	// Runner executes pgrep.
	Runner Runner

	// Probe derives the current mount state.
	Probe MountProbe

	// Clock supplies the reference time for backup ages.
	Clock func() time.Time

	Logger zerolog.Logger

	cfg Config
}

func NewStatusReporter(cfg Config, runner Runner) *StatusReporter {
	return &StatusReporter{
		Runner: runner,
		Probe:  DefaultMountProbe(),
		Clock:  time.Now,
		Logger: DefaultLogger(),
		cfg:    cfg,
	}
}

// Report assembles the current status.
func (s *StatusReporter) Report(ctx context.Context) (Status, error) {
	var st Status

	mounted, err := s.Probe(s.cfg.ProfileDir)
	if err != nil {
		return st, err
	}
	st.RAMActive = mounted
	if !mounted {
		if entries, err := os.ReadDir(s.cfg.RAMDir); err == nil && len(entries) > 0 {
			st.StaleMirror = true
		}
	}

	st.ProcessActive, err = ProcessActive(ctx, s.Runner, s.cfg.ProcessName)
	if err != nil {
		return st, err
	}

	if info, err := os.Stat(s.cfg.BackupDir); err == nil && info.IsDir() {
		st.BackupDirExists = true
	}
	st.Backups, err = listBackups(s.cfg)
	if err != nil {
		return st, err
	}
	if len(st.Backups) > 0 {
		st.Latest = &st.Backups[0]
		st.LatestAge = s.Clock().Sub(st.Latest.ModTime)
		st.LatestStale = st.LatestAge > StaleAfter
	}
	return st, nil
}
