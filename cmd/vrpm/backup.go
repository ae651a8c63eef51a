package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a ZIP backup of the active RAM profile",
		Long: `Archive the live RAM profile into a timestamped ZIP file under the
backup directory. The profile must be mounted in RAM; the backup
captures the state the browser is actually using.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver := vrpm.NewBackupArchiver(cfg)
			archiver.Logger = logger

			progress := newProgressPrinter("Writing backup archive")
			path, err := archiver.Create(cmd.Context(), progress.update)
			progress.close()
			if err != nil {
				return err
			}

			fmt.Printf("✓ Backup completed: %s\n", path)
			return nil
		},
	}

	return cmd
}
