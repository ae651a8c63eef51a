package vrpm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const procSelfMountinfo = "/proc/self/mountinfo"

// MountProbe reports whether a path is currently a mount point. State
// is derived from the OS on every call; nothing is cached.
type MountProbe func(path string) (bool, error)

// NewMountinfoProbe returns a probe that scans the given mountinfo
// table, normally /proc/self/mountinfo.
func NewMountinfoProbe(table string) MountProbe {
	return func(path string) (bool, error) {
		f, err := os.Open(table)
		if err != nil {
			return false, fmt.Errorf("read mount table: %w", err)
		}
		defer func() { _ = f.Close() }()

		target, err := filepath.Abs(path)
		if err != nil {
			return false, err
		}
		target = filepath.Clean(target)

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			// Field 5 is the mount point, octal-escaped by the kernel.
			if len(fields) < 5 {
				continue
			}
			if unescapeMountPath(fields[4]) == target {
				return true, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("read mount table: %w", err)
		}
		return false, nil
	}
}

// DefaultMountProbe scans /proc/self/mountinfo.
func DefaultMountProbe() MountProbe {
	return NewMountinfoProbe(procSelfMountinfo)
}

// unescapeMountPath reverses the \ooo octal escaping the kernel applies
// to whitespace and backslashes in mountinfo paths.
func unescapeMountPath(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ConfirmFunc asks the operator a yes/no question. Implementations must
// default to no; a nil ConfirmFunc declines every prompt.
type ConfirmFunc func(prompt string) (bool, error)

// Outcome describes the effect of a Load or Save transition.
type Outcome int

const (
	// Applied means the transition ran to completion.
	Applied Outcome = iota

	// AlreadyInState means the profile was already in the requested
	// state and nothing was done.
	AlreadyInState
)

// Syncer mirrors a source tree onto a destination, deleting destination
// entries absent from the source.
type Syncer interface {
	Mirror(ctx context.Context, src, dst string, onProgress ProgressFunc) error
}

// MountController moves the profile between disk and the RAM
// filesystem. Mount state is re-derived from the mount table on every
// transition, so interrupted runs are picked up where they left off.
type MountController struct {
	// Runner executes mount, umount and pgrep.
	Runner Runner

	// Syncer performs the reconciling copies.
	Syncer Syncer

	// Probe derives the current mount state.
	Probe MountProbe

	// Confirm gates transitions while the browser process is active.
	// nil declines, so unattended runs abort rather than race a live
	// process.
	Confirm ConfirmFunc

	// Elevate prefixes mount and umount with sudo. Defaults to true
	// unless running as root.
	Elevate bool

	Logger zerolog.Logger

	cfg Config
}

// NewMountController wires a controller with the default probe and an
// OS runner-backed sync engine.
func NewMountController(cfg Config, runner Runner) *MountController {
	log := DefaultLogger()
	return &MountController{
		Runner:  runner,
		Syncer:  NewSyncEngine(log),
		Probe:   DefaultMountProbe(),
		Elevate: os.Geteuid() != 0,
		Logger:  log,
		cfg:     cfg,
	}
}

// Load mirrors the profile onto the RAM filesystem and bind-mounts the
// mirror over the profile directory. A profile that is already mounted
// is a successful no-op. The mirror must complete before the mount is
// attempted; a failed mirror aborts the transition with the profile
// still untouched on disk.
func (c *MountController) Load(ctx context.Context, onProgress ProgressFunc) (Outcome, error) {
	if err := c.ensureProfile(); err != nil {
		return AlreadyInState, err
	}
	mounted, err := c.Probe(c.cfg.ProfileDir)
	if err != nil {
		return AlreadyInState, err
	}
	if mounted {
		c.Logger.Info().Str("profile", c.cfg.ProfileDir).Msg("profile already mounted")
		return AlreadyInState, nil
	}
	if err := c.confirmIfActive(ctx, "load the profile into RAM"); err != nil {
		return AlreadyInState, err
	}
	if entries, err := os.ReadDir(c.cfg.RAMDir); err == nil && len(entries) > 0 {
		// Leftover mirror from an interrupted load; the reconciling
		// copy below refreshes it.
		c.Logger.Warn().Str("ram_dir", c.cfg.RAMDir).Msg("mirror directory already populated, refreshing")
	}

	plan := NewPlan(c.Logger)
	plan.Add(
		Step{
			ID: "prepare-mirror",
			Run: func(ctx context.Context) error {
				return os.MkdirAll(c.cfg.RAMDir, 0o700)
			},
		},
		Step{
			ID:    "copy-profile",
			Needs: []string{"prepare-mirror"},
			Run: func(ctx context.Context) error {
				return c.Syncer.Mirror(ctx, c.cfg.ProfileDir, c.cfg.RAMDir, onProgress)
			},
		},
		Step{
			ID:    "bind-mount",
			Needs: []string{"copy-profile"},
			Run:   c.bindMount,
		},
	)
	if err := plan.Run(ctx); err != nil {
		return AlreadyInState, err
	}

	c.Logger.Info().
		Str("profile", c.cfg.ProfileDir).
		Str("ram_dir", c.cfg.RAMDir).
		Msg("profile mounted on RAM filesystem")
	return Applied, nil
}

// Save releases the bind mount and mirrors the RAM copy back onto the
// on-disk profile, then removes the mirror. An unmounted profile is a
// successful no-op. The unmount is verified by re-probing before any
// data moves; the sync back never runs against a still-mounted
// profile.
func (c *MountController) Save(ctx context.Context, onProgress ProgressFunc) (Outcome, error) {
	mounted, err := c.Probe(c.cfg.ProfileDir)
	if err != nil {
		return AlreadyInState, err
	}
	if !mounted {
		c.Logger.Info().Str("profile", c.cfg.ProfileDir).Msg("profile not mounted, nothing to save")
		return AlreadyInState, nil
	}
	if err := c.confirmIfActive(ctx, "save the profile back to disk"); err != nil {
		return AlreadyInState, err
	}

	plan := NewPlan(c.Logger)
	plan.Add(
		Step{
			ID:  "unmount",
			Run: c.verifiedUnmount,
		},
		Step{
			ID:    "copy-back",
			Needs: []string{"unmount"},
			Run: func(ctx context.Context) error {
				return c.Syncer.Mirror(ctx, c.cfg.RAMDir, c.cfg.ProfileDir, onProgress)
			},
		},
		Step{
			ID:    "remove-mirror",
			Needs: []string{"copy-back"},
			Run: func(ctx context.Context) error {
				return os.RemoveAll(c.cfg.RAMDir)
			},
		},
	)
	if err := plan.Run(ctx); err != nil {
		return AlreadyInState, err
	}

	c.Logger.Info().Str("profile", c.cfg.ProfileDir).Msg("profile saved to disk")
	return Applied, nil
}

func (c *MountController) ensureProfile() error {
	info, err := os.Stat(c.cfg.ProfileDir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, c.cfg.ProfileDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrProfileNotFound, c.cfg.ProfileDir)
	}
	return nil
}

// confirmIfActive never blocks a transition on its own: a running
// browser process only routes the decision through Confirm.
func (c *MountController) confirmIfActive(ctx context.Context, action string) error {
	active, err := ProcessActive(ctx, c.Runner, c.cfg.ProcessName)
	if err != nil {
		return fmt.Errorf("check for running %s: %w", c.cfg.ProcessName, err)
	}
	if !active {
		return nil
	}
	if c.Confirm == nil {
		return fmt.Errorf("%w: %s is running", ErrAborted, c.cfg.ProcessName)
	}
	ok, err := c.Confirm(fmt.Sprintf("%s is running. %s anyway?", c.cfg.ProcessName, strings.ToUpper(action[:1])+action[1:]))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is running", ErrAborted, c.cfg.ProcessName)
	}
	c.Logger.Warn().Str("process", c.cfg.ProcessName).Msg("proceeding while process is active")
	return nil
}

func (c *MountController) bindMount(ctx context.Context) error {
	argv := c.elevated(c.cfg.MountCommand())
	if _, err := c.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%w: %w", ErrMountFailed, err)
	}
	return nil
}

func (c *MountController) verifiedUnmount(ctx context.Context) error {
	argv := c.elevated(c.cfg.UnmountCommand())
	if _, err := c.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmountFailed, err)
	}
	still, err := c.Probe(c.cfg.ProfileDir)
	if err != nil {
		return err
	}
	if still {
		return fmt.Errorf("%w: %s is still mounted", ErrUnmountFailed, c.cfg.ProfileDir)
	}
	return nil
}

func (c *MountController) elevated(argv []string) []string {
	if !c.Elevate {
		return argv
	}
	return append([]string{"sudo"}, argv...)
}
