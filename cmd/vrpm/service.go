package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

const serviceName = "vrpm.service"

// serviceUnit renders the systemd user unit that loads the profile into
// RAM when the session starts and saves it back on stop.
func serviceUnit(execPath string) string {
	return fmt.Sprintf(`[Unit]
Description=Vivaldi RAM Profile Manager
After=graphical-session.target

[Service]
Type=oneshot
ExecStart=%s load
ExecStop=%s save
RemainAfterExit=yes

[Install]
WantedBy=default.target
`, execPath, execPath)
}

// installPaths returns where the binary and the systemd user unit are
// installed for the current user.
func installPaths() (binPath, unitPath string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	binPath = filepath.Join(home, ".local", "bin", "vrpm")
	unitPath = filepath.Join(home, ".config", "systemd", "user", serviceName)
	return binPath, unitPath, nil
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// Remove first so an installed copy that is currently running does
	// not make the overwrite fail with ETXTBSY.
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the binary and enable the systemd user service",
		Long: `Copy the running binary to ~/.local/bin/vrpm, write a systemd user
unit that runs "vrpm load" on session start and "vrpm save" on stop,
and enable it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate running binary: %w", err)
			}
			binPath, unitPath, err := installPaths()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(binPath), 0o755); err != nil {
				return err
			}
			if exe != binPath {
				if err := copyExecutable(exe, binPath); err != nil {
					return fmt.Errorf("failed to install binary: %w", err)
				}
			}

			if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(unitPath, []byte(serviceUnit(binPath)), 0o644); err != nil {
				return fmt.Errorf("failed to write service unit: %w", err)
			}

			runner := vrpm.NewExecRunner(logger)
			if _, err := runner.Run(cmd.Context(), "systemctl", "--user", "daemon-reload"); err != nil {
				return err
			}
			if _, err := runner.Run(cmd.Context(), "systemctl", "--user", "enable", serviceName); err != nil {
				return err
			}

			fmt.Println("✓ Service installed and enabled.")

			ok, err := confirmPrompt("Show optional password-less sudo instructions?")
			if err != nil {
				return err
			}
			if ok {
				printSudoHelp(cmd.OutOrStdout(), cfg)
			}
			return nil
		},
	}

	return cmd
}

func newDisableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable the systemd user service (keep files)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, unitPath, err := installPaths()
			if err != nil {
				return err
			}
			if _, err := os.Stat(unitPath); errors.Is(err, fs.ErrNotExist) {
				fmt.Println("Service is not installed.")
				return nil
			}

			runner := vrpm.NewExecRunner(logger)
			if _, err := runner.Run(cmd.Context(), "systemctl", "--user", "disable", serviceName); err != nil {
				return err
			}

			fmt.Println("✓ Service disabled.")
			return nil
		},
	}

	return cmd
}

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Disable the service and remove installed files",
		Long: `Disable the systemd user service, delete the unit file and ask before
deleting the installed binary and the backup directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			binPath, unitPath, err := installPaths()
			if err != nil {
				return err
			}

			runner := vrpm.NewExecRunner(logger)
			if _, err := os.Stat(unitPath); err == nil {
				// Removal proceeds even when systemctl is unavailable;
				// the unit file goes away either way.
				if _, err := runner.Run(cmd.Context(), "systemctl", "--user", "disable", serviceName); err != nil {
					logger.Warn().Err(err).Msg("failed to disable service")
				}
				if err := os.Remove(unitPath); err != nil {
					return err
				}
				if _, err := runner.Run(cmd.Context(), "systemctl", "--user", "daemon-reload"); err != nil {
					logger.Warn().Err(err).Msg("failed to reload systemd")
				}
			}

			ok, err := confirmPrompt("Delete installed binary?")
			if err != nil {
				return err
			}
			if ok {
				if err := os.Remove(binPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			ok, err = confirmPrompt("Delete backup directory?")
			if err != nil {
				return err
			}
			if ok {
				if err := os.RemoveAll(cfg.BackupDir); err != nil {
					return err
				}
			}

			fmt.Println("✓ Service and files removed.")
			return nil
		},
	}

	return cmd
}
