package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newLoadCommand() *cobra.Command {
	var skipCapacityCheck bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the browser profile into RAM",
		Long: `Mirror the profile directory into RAM and bind-mount the mirror over
the original location. The browser keeps using its configured profile
path and transparently reads and writes RAM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !skipCapacityCheck {
				report, err := vrpm.NewCapacityChecker(cfg).Check()
				if err != nil {
					return err
				}
				if !report.OK {
					printCapacityReport(cmd.ErrOrStderr(), report)
					ok, err := confirmPrompt("Available RAM is below the safety margin. Continue anyway?")
					if err != nil {
						return err
					}
					if !ok {
						return report.Err()
					}
				}
			}

			ctrl := vrpm.NewMountController(cfg, vrpm.NewExecRunner(logger))
			ctrl.Logger = logger
			ctrl.Confirm = confirmPrompt

			progress := newProgressPrinter("Copying profile into RAM")
			outcome, err := ctrl.Load(cmd.Context(), progress.update)
			progress.close()
			if err != nil {
				return err
			}

			if outcome == vrpm.AlreadyInState {
				fmt.Println("Profile is already mounted in RAM.")
				return nil
			}
			fmt.Println("✓ Profile is now running from RAM.")
			fmt.Println()
			fmt.Printf("Do not delete %s while mounted.\n", cfg.RAMDir)
			fmt.Println("Run \"vrpm save\" before shutdown to persist changes.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCapacityCheck, "skip-capacity-check", false, "Load even when free RAM was not verified")

	return cmd
}
