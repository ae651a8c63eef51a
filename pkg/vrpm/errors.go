package vrpm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure classes callers branch on. Detail is
// added at the call site with fmt.Errorf("%w: ...").
var (
	// ErrProfileNotFound means the configured profile directory does
	// not exist.
	ErrProfileNotFound = errors.New("profile directory not found")

	// ErrRAMNotActive means an operation required the profile to be
	// mounted on the RAM filesystem and it was not.
	ErrRAMNotActive = errors.New("RAM profile is not active")

	// ErrArchiverUnavailable means the archive machinery cannot service
	// the request, for example an unsupported compression method.
	ErrArchiverUnavailable = errors.New("archiver unavailable")

	// ErrNoBackupsFound means a restore was requested with an empty
	// backup directory.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrInvalidSelection means a selector returned an index outside
	// the presented list.
	ErrInvalidSelection = errors.New("invalid backup selection")

	// ErrMountFailed wraps a failed bind mount.
	ErrMountFailed = errors.New("bind mount failed")

	// ErrUnmountFailed wraps a failed or unverified unmount.
	ErrUnmountFailed = errors.New("unmount failed")

	// ErrCapacityInsufficient means the RAM filesystem cannot hold the
	// profile with the configured headroom.
	ErrCapacityInsufficient = errors.New("insufficient RAM capacity")

	// ErrExternalTool classifies any external command failure.
	ErrExternalTool = errors.New("external tool failed")

	// ErrAborted means the operator declined a confirmation prompt.
	ErrAborted = errors.New("aborted")
)

// StepError reports which plan step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ToolError reports a failed external command, keeping its combined
// output and exit code for diagnostics.
type ToolError struct {
	Name     string
	Args     []string
	Output   string
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	cmd := e.Name
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", cmd, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is matches ErrExternalTool so callers can test for the class without
// the concrete type.
func (e *ToolError) Is(target error) bool {
	return target == ErrExternalTool
}
