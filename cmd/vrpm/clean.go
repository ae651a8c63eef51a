package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newCleanBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean-backup",
		Short: "Delete all backups except the latest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			restorer := vrpm.NewRestoreEngine(cfg)
			restorer.Logger = logger

			removed, err := restorer.Clean()
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Println("No old backups to remove.")
				return nil
			}

			fmt.Printf("✓ Removed %d old backup(s), kept the latest.\n", len(removed))
			return nil
		},
	}

	return cmd
}

func newPurgeBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-backup",
		Short: "Delete ALL backup files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirmPrompt("Delete ALL backup files?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Purge cancelled.")
				return nil
			}

			restorer := vrpm.NewRestoreEngine(cfg)
			restorer.Logger = logger

			removed, err := restorer.Purge()
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Println("No backups to delete.")
				return nil
			}

			fmt.Printf("✓ Deleted %d backup(s).\n", len(removed))
			return nil
		},
	}

	return cmd
}
