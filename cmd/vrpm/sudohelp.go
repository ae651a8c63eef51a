package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newSudoHelpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sudo-help",
		Short: "Show optional password-less sudo mount instructions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printSudoHelp(cmd.OutOrStdout(), cfg)
		},
	}

	return cmd
}

// sudoersCommand renders an argv as the absolute command line a sudoers
// NOPASSWD rule needs.
func sudoersCommand(argv []string) string {
	return "/bin/" + strings.Join(argv, " ")
}

func printSudoHelp(w io.Writer, cfg vrpm.Config) {
	user := os.Getenv("USER")
	if user == "" {
		user = "USERNAME"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " OPTIONAL: Password-less mount/umount configuration")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This is optional. vrpm works fine without it.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "If you want to avoid entering your sudo password")
	fmt.Fprintln(w, "when loading or saving the RAM profile:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1) Open sudoers safely:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   sudo visudo")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "2) Add this line at the end:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "   %s ALL=(root) NOPASSWD: \\\n", user)
	fmt.Fprintf(w, "     %s, \\\n", sudoersCommand(cfg.MountCommand()))
	fmt.Fprintf(w, "     %s\n", sudoersCommand(cfg.UnmountCommand()))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "3) Save and exit.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "After this, \"vrpm load\" and \"vrpm save\" will not ask for a password.")
}
