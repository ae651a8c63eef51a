package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the RAM profile back to disk",
		Long: `Unmount the RAM profile, sync its contents back to the profile
directory on disk and remove the RAM mirror. Run this before shutdown
or the changes made while running from RAM are lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := vrpm.NewMountController(cfg, vrpm.NewExecRunner(logger))
			ctrl.Logger = logger
			ctrl.Confirm = confirmPrompt

			progress := newProgressPrinter("Saving profile back to disk")
			outcome, err := ctrl.Save(cmd.Context(), progress.update)
			progress.close()
			if err != nil {
				return err
			}

			if outcome == vrpm.AlreadyInState {
				fmt.Println("Profile is not mounted in RAM; nothing to save.")
				return nil
			}
			fmt.Println("✓ Profile saved.")
			return nil
		},
	}

	return cmd
}
