package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show RAM, browser and backup status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter := vrpm.NewStatusReporter(cfg, vrpm.NewExecRunner(logger))
			reporter.Logger = logger

			st, err := reporter.Report(cmd.Context())
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), cfg, st)
			return nil
		},
	}

	return cmd
}

func printStatus(w io.Writer, cfg vrpm.Config, st vrpm.Status) {
	fmt.Fprintln(w, "=== RAM status ===")
	fmt.Fprintf(w, "  Profile dir : %s\n", cfg.ProfileDir)
	fmt.Fprintf(w, "  RAM dir     : %s\n", cfg.RAMDir)
	fmt.Fprintf(w, "  RAM active  : %s\n", yesNo(st.RAMActive))
	if st.StaleMirror {
		fmt.Fprintln(w, "  WARNING     : RAM mirror holds data but is not mounted; run \"vrpm load\" or \"vrpm save\"")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Browser status ===")
	fmt.Fprintf(w, "  Process : %s\n", cfg.ProcessName)
	fmt.Fprintf(w, "  Running : %s\n", yesNo(st.ProcessActive))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Backup status ===")
	fmt.Fprintf(w, "  Backup path   : %s\n", cfg.BackupDir)
	if !st.BackupDirExists {
		fmt.Fprintln(w, "  Backup dir    : not created")
		return
	}
	if st.Latest == nil {
		fmt.Fprintln(w, "  Backups found : none")
		return
	}
	fmt.Fprintf(w, "  Backups found : %d\n", len(st.Backups))
	fmt.Fprintf(w, "  Latest backup : %s\n", st.Latest.Name)
	fmt.Fprintf(w, "  Size          : %s\n", humanize.IBytes(uint64(st.Latest.Size)))
	fmt.Fprintf(w, "  Created       : %s\n", humanize.Time(st.Latest.ModTime))
	if st.LatestStale {
		fmt.Fprintln(w, "  WARNING       : last backup is older than 7 days")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
