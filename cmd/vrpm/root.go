package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

var (
	verbosity int

	// cfg and logger are populated by the root PersistentPreRunE before
	// any subcommand runs.
	cfg    vrpm.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vrpm",
	Short: "Run a browser profile from RAM",
	Long: `vrpm keeps a browser profile on a RAM-backed filesystem while the
session is active. It mirrors the profile directory into RAM, bind-mounts
the mirror over the original location so the browser needs no
reconfiguration, and syncs everything back to disk on save. Backups of the
active RAM state can be created and restored as ZIP archives.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := vrpm.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c
		logger = vrpm.NewVerbosityLogger(os.Stderr, verbosity)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeat for more detail)")

	// Add version command
	rootCmd.AddCommand(versionCmd)

	// Add subcommands
	rootCmd.AddCommand(newLoadCommand())
	rootCmd.AddCommand(newSaveCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newRestoreSelectCommand())
	rootCmd.AddCommand(newCleanBackupCommand())
	rootCmd.AddCommand(newPurgeBackupCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newDisableCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newSudoHelpCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of vrpm`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vrpm version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
