package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/starsweep/internal/catalog"
	"github.com/nao1215/starsweep/internal/config"
	"github.com/nao1215/starsweep/internal/model"
	"github.com/nao1215/starsweep/internal/probe"
	"github.com/nao1215/starsweep/internal/report"
	"github.com/spf13/cobra"
)

// NewCatalogCmd creates the catalog command and its subcommands.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and edit the catalog of verified sites",
	}

	cmd.AddCommand(newCatalogListCmd())
	cmd.AddCommand(newCatalogAddCmd())
	cmd.AddCommand(newCatalogRemoveCmd())

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the catalog",
		Long: `List prints every catalog entry sorted by alias.

Examples:
  starsweep catalog list
  starsweep catalog list --format json
  starsweep catalog list -f markdown > SITES.md
  starsweep catalog list --mirror`,
		Args: cobra.NoArgs,
		RunE: runCatalogListCmd,
	}

	cmd.Flags().StringP("format", "f", report.FormatText,
		"Output format: text, json or markdown")
	cmd.Flags().Bool("mirror", false, "Read the entries from the SQLite mirror instead of the catalog file")

	return cmd
}

func runCatalogListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	w, err := report.NewWriter(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	fromMirror, err := cmd.Flags().GetBool("mirror")
	if err != nil {
		return err
	}
	if fromMirror {
		entries, err := listMirror(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		_, err = w.WriteCatalog(entries)
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)

	// Listing never writes, so the mirror and lock are not needed.
	readOnly := *cfg
	readOnly.MirrorPath = ""
	readOnly.RedisAddress = ""

	cat, closeCatalog, err := openCatalog(cmd.Context(), &readOnly, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	_, err = w.WriteCatalog(cat.List())
	return err
}

// listMirror reads every mirrored entry without creating the database.
func listMirror(ctx context.Context, cfg *config.Config) ([]model.CatalogEntry, error) {
	if cfg.MirrorPath == "" {
		return nil, errors.New("no mirror is configured")
	}

	mirror, err := catalog.OpenMirror(cfg.MirrorPath, catalog.MirrorOptions{EnableWAL: true})
	if err != nil {
		return nil, err
	}
	defer mirror.Close()

	rows, err := mirror.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.CatalogEntry)
	}
	return entries, nil
}

func newCatalogAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <url> [description]",
		Short: "Add a site to the catalog by hand",
		Long: `Add records a site without probing it. The alias is derived from the
site's domain unless --alias is given. Adding an alias that already exists
is a no-op.

Examples:
  starsweep catalog add https://docs.example.com "Example documentation"
  starsweep catalog add https://example.dev --alias example`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCatalogAddCmd,
	}

	cmd.Flags().StringP("alias", "a", "", "Alias to record the site under")

	return cmd
}

func runCatalogAddCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	entry, err := entryFromArgs(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)
	cat, closeCatalog, err := openCatalog(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	added, err := cat.Append(cmd.Context(), entry)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already in the catalog\n", entry.Alias)
		return nil
	}

	if err := refreshListing(cfg, cat.List()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", entry.Alias, entry.URL)
	return nil
}

// entryFromArgs builds a catalog entry from the add arguments.
func entryFromArgs(cmd *cobra.Command, args []string) (model.CatalogEntry, error) {
	siteURL := probe.NormalizeHomepage(args[0])
	domain := probe.DomainOf(siteURL)
	if domain == "" {
		return model.CatalogEntry{}, fmt.Errorf("not a site URL: %q", args[0])
	}

	alias, err := cmd.Flags().GetString("alias")
	if err != nil {
		return model.CatalogEntry{}, err
	}
	if alias == "" {
		alias = probe.Alias(domain)
	}

	var description string
	if len(args) > 1 {
		description = args[1]
	}
	return model.CatalogEntry{
		Alias:       alias,
		URL:         siteURL,
		Description: probe.Describe(alias, description),
	}, nil
}

func newCatalogRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <alias>",
		Aliases: []string{"rm"},
		Short:   "Remove a site from the catalog",
		Args:    cobra.ExactArgs(1),
		RunE:    runCatalogRemoveCmd,
	}
}

func runCatalogRemoveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Verbose)
	cat, closeCatalog, err := openCatalog(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	removed, err := cat.Remove(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("alias not found: %s", args[0])
	}

	if err := refreshListing(cfg, cat.List()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

// refreshListing regenerates the listing when one is configured.
func refreshListing(cfg *config.Config, entries []model.CatalogEntry) error {
	if cfg.ListingPath == "" {
		return nil
	}
	return report.WriteListingFile(cfg.ListingPath, entries)
}
