package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check-ram",
		Aliases: []string{"check-capacity"},
		Short:   "Check the profile size against available RAM",
		Long: `Measure the on-disk profile, probe free space on the RAM filesystem
and report whether the profile fits with the configured headroom
factor. Exits non-zero when it does not.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := vrpm.NewCapacityChecker(cfg).Check()
			if err != nil {
				return err
			}

			printCapacityReport(cmd.OutOrStdout(), report)
			if !report.OK {
				fmt.Fprintln(cmd.OutOrStdout(), "✗ RAM insufficient")
				return report.Err()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ RAM OK")
			return nil
		},
	}

	return cmd
}

func printCapacityReport(w io.Writer, report vrpm.CapacityReport) {
	fmt.Fprintf(w, "Profile size  : %s\n", humanize.IBytes(uint64(report.ProfileBytes)))
	fmt.Fprintf(w, "Available RAM : %s\n", humanize.IBytes(uint64(report.AvailableBytes)))
	fmt.Fprintf(w, "Required RAM  : %s (%g× rule)\n", humanize.IBytes(uint64(report.RequiredBytes)), report.Factor)
}
