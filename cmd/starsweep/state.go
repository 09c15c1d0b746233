package main

import (
	"errors"
	"fmt"

	"github.com/nao1215/starsweep/internal/state"
	"github.com/spf13/cobra"
)

// NewStateCmd creates the state command and its subcommands.
func NewStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the saved crawl progress",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved window and counters",
		Args:  cobra.NoArgs,
		RunE:  runStateShowCmd,
	})

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Move the next window back to the top of the rank space",
		Long: `Reset moves the next window back to the top of the rank space. Scanned
domains are kept so they are not probed again, unless --forget is given.`,
		Args: cobra.NoArgs,
		RunE: runStateResetCmd,
	}
	reset.Flags().Bool("forget", false, "Also forget scanned domains and found sites")
	cmd.AddCommand(reset)

	return cmd
}

func runStateShowCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	st, err := state.Load(cfg.StatePath, newScheduler(cfg).Initial())
	if err != nil {
		return err
	}

	pos := st.Position()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State file:      %s\n", cfg.StatePath)
	fmt.Fprintf(out, "Next ceiling:    %d\n", pos.Ceiling)
	fmt.Fprintf(out, "Gradient:        %d\n", pos.Gradient)
	fmt.Fprintf(out, "Scanned domains: %d\n", st.ScannedCount())
	fmt.Fprintf(out, "Found sites:     %d\n", len(st.Found()))
	return nil
}

func runStateResetCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	forget, err := cmd.Flags().GetBool("forget")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)
	initial := newScheduler(cfg).Initial()

	st, err := state.Load(cfg.StatePath, initial)
	switch {
	case errors.Is(err, state.ErrStateCorrupt):
		logger.Warn("replacing corrupt state file", "error", err)
	case err != nil:
		return err
	}

	if forget {
		st = state.New(initial)
	} else {
		st.Reset(initial)
	}

	if err := st.Save(cfg.StatePath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "State reset: next window starts at %d (scanned domains: %d)\n",
		initial.Ceiling, st.ScannedCount())
	return nil
}
