package vrpm

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Runner executes external commands and captures their combined output.
// Implementations return a *ToolError when the command exits non-zero
// or cannot be started.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger zerolog.Logger
}

// NewExecRunner creates a runner that logs each invocation through log.
func NewExecRunner(log zerolog.Logger) *ExecRunner {
	return &ExecRunner{Logger: log}
}

// Run executes name with args, returning the trimmed combined output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.Logger.Debug().
		Str("command", name).
		Strs("args", args).
		Msg("running external command")

	err := cmd.Run()
	output := strings.TrimSpace(buf.String())
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		r.Logger.Debug().
			Str("command", name).
			Int("exit_code", code).
			Str("output", output).
			Msg("external command failed")
		return output, &ToolError{Name: name, Args: args, Output: output, ExitCode: code, Err: err}
	}
	return output, nil
}

// ProcessActive reports whether a process with the exact name is
// currently running, using pgrep through the runner. A pgrep exit code
// of 1 means no match and is not an error.
func ProcessActive(ctx context.Context, r Runner, name string) (bool, error) {
	_, err := r.Run(ctx, "pgrep", "-x", name)
	if err == nil {
		return true, nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}
