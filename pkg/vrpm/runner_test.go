package vrpm_test

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

// fakeRunner scripts command outcomes by command name and records
// every invocation.
type fakeRunner struct {
	calls [][]string
	fail  map[string]error
	out   map[string]string
	onRun func(name string, args []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		fail: map[string]error{},
		out:  map[string]string{},
	}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := f.fail[name]; err != nil {
		return f.out[name], err
	}
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return f.out[name], nil
}

func (f *fakeRunner) commandNames() []string {
	names := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		names = append(names, call[0])
	}
	return names
}

// pgrepNoMatch is the ToolError pgrep produces when no process matches.
func pgrepNoMatch() error {
	return &vrpm.ToolError{
		Name:     "pgrep",
		Args:     []string{"-x", "vivaldi-bin"},
		ExitCode: 1,
		Err:      errors.New("exit status 1"),
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Runner tests are Unix-specific")
	}
	ctx := context.Background()
	runner := vrpm.NewExecRunner(quietLogger())

	t.Run("captures trimmed output", func(t *testing.T) {
		out, err := runner.Run(ctx, "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != "hello" {
			t.Errorf("Expected output %q, got %q", "hello", out)
		}
	})

	t.Run("non-zero exit becomes a ToolError", func(t *testing.T) {
		out, err := runner.Run(ctx, "sh", "-c", "echo oops >&2; exit 3")
		if err == nil {
			t.Fatal("Expected an error for exit 3")
		}
		var toolErr *vrpm.ToolError
		if !errors.As(err, &toolErr) {
			t.Fatalf("Expected *ToolError, got %T", err)
		}
		if toolErr.ExitCode != 3 {
			t.Errorf("Expected exit code 3, got %d", toolErr.ExitCode)
		}
		if out != "oops" {
			t.Errorf("Expected captured stderr, got %q", out)
		}
		if !errors.Is(err, vrpm.ErrExternalTool) {
			t.Errorf("Expected error to match ErrExternalTool, got %v", err)
		}
	})

	t.Run("missing binary reports exit code -1", func(t *testing.T) {
		_, err := runner.Run(ctx, "vrpm-test-no-such-binary")
		var toolErr *vrpm.ToolError
		if !errors.As(err, &toolErr) {
			t.Fatalf("Expected *ToolError, got %v", err)
		}
		if toolErr.ExitCode != -1 {
			t.Errorf("Expected exit code -1, got %d", toolErr.ExitCode)
		}
	})
}

func TestProcessActive(t *testing.T) {
	ctx := context.Background()

	t.Run("match means active", func(t *testing.T) {
		runner := newFakeRunner()
		runner.out["pgrep"] = "1234"

		active, err := vrpm.ProcessActive(ctx, runner, "vivaldi-bin")
		if err != nil {
			t.Fatalf("ProcessActive failed: %v", err)
		}
		if !active {
			t.Error("Expected active process")
		}
		if len(runner.calls) != 1 || strings.Join(runner.calls[0], " ") != "pgrep -x vivaldi-bin" {
			t.Errorf("Unexpected pgrep invocation: %v", runner.calls)
		}
	})

	t.Run("exit 1 means not running", func(t *testing.T) {
		runner := newFakeRunner()
		runner.fail["pgrep"] = pgrepNoMatch()

		active, err := vrpm.ProcessActive(ctx, runner, "vivaldi-bin")
		if err != nil {
			t.Fatalf("Expected no-match to be benign, got %v", err)
		}
		if active {
			t.Error("Expected inactive process")
		}
	})

	t.Run("other failures surface", func(t *testing.T) {
		runner := newFakeRunner()
		runner.fail["pgrep"] = &vrpm.ToolError{
			Name:     "pgrep",
			ExitCode: 2,
			Err:      errors.New("exit status 2"),
		}

		_, err := vrpm.ProcessActive(ctx, runner, "vivaldi-bin")
		if err == nil {
			t.Fatal("Expected pgrep usage error to surface")
		}
	})
}
