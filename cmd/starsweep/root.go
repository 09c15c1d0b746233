package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for starsweep.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "starsweep",
		Short: "Sweep repository homepages and catalog the sites that carry a marker",
		Long: `starsweep walks the repository search API from the most starred
repositories downward, one star-count window at a time. Each repository
homepage is probed for a configured marker, verified, and recorded in a
catalog. Progress is saved after every batch so a run can resume where the
previous one stopped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .starsweep in current or home directory)")
	cmd.PersistentFlags().StringP("data-dir", "d", "",
		"Directory holding state, catalog, mirror and listing (default: XDG data directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCatalogCmd())
	cmd.AddCommand(NewStateCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
