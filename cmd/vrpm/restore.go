package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the latest backup into the RAM profile",
		Long: `Extract the most recent ZIP backup over the active RAM profile.
Archived files overwrite their live counterparts; files created after
the backup was taken are left in place. The profile must be mounted
in RAM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirmPrompt("This will overwrite the current RAM profile. Continue?")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: restore declined", vrpm.ErrAborted)
			}

			restorer := vrpm.NewRestoreEngine(cfg)
			restorer.Logger = logger

			progress := newProgressPrinter("Restoring backup")
			rec, err := restorer.Latest(cmd.Context(), progress.update)
			progress.close()
			if err != nil {
				return err
			}

			fmt.Printf("✓ Restored backup %s\n", rec.Name)
			return nil
		},
	}

	return cmd
}

func newRestoreSelectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore-select",
		Short: "Pick a backup interactively and restore it",
		Long: `List the available backups newest first, let the user pick one and
extract it over the active RAM profile. Cancelling the picker leaves
the profile untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			restorer := vrpm.NewRestoreEngine(cfg)
			restorer.Logger = logger

			progress := newProgressPrinter("Restoring backup")
			rec, cancelled, err := restorer.Selected(cmd.Context(), pickBackup, progress.update)
			progress.close()
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Println("Restore cancelled.")
				return nil
			}

			fmt.Printf("✓ Restored backup %s\n", rec.Name)
			return nil
		},
	}

	return cmd
}
