package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/starsweep/internal/catalog"
	"github.com/nao1215/starsweep/internal/config"
	"github.com/nao1215/starsweep/internal/crawl"
	"github.com/nao1215/starsweep/internal/detect"
	"github.com/nao1215/starsweep/internal/model"
	"github.com/nao1215/starsweep/internal/probe"
	"github.com/nao1215/starsweep/internal/ratelimit"
	"github.com/nao1215/starsweep/internal/report"
	"github.com/nao1215/starsweep/internal/scheduler"
	"github.com/nao1215/starsweep/internal/search"
	"github.com/nao1215/starsweep/internal/state"
	"github.com/nao1215/starsweep/internal/transport"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Sweep the search API and catalog verified sites",
		Long: `Crawl resumes from the saved state and sweeps star-count windows until
the time budget elapses, the rank space is exhausted, or the process is
interrupted. Every candidate homepage is probed for the configured marker and
verified before it is added to the catalog.

The search token is read from STARSWEEP_TOKEN, falling back to GITHUB_TOKEN.
Both may be set in a .env file in the working directory.

Examples:
  # Run with the default 5h30m budget
  starsweep crawl --marker "docs-widget.js"

  # Short run with more workers
  starsweep crawl -m "docs-widget.js" -b 30m -w 20

  # Route probes through a SOCKS5 proxy
  starsweep crawl -m "docs-widget.js" --proxy 127.0.0.1:1080`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("marker", "m", "",
		"Substring that identifies a matching site (required unless set in the config file)")
	cmd.Flags().DurationP("budget", "b", config.DefaultBudget,
		"Wall-clock budget of the run (0 means unlimited)")
	cmd.Flags().IntP("workers", "w", probe.DefaultWorkers,
		"Number of concurrent probes")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("retry-pause", crawl.DefaultRetryPause,
		"Pause before retrying a window after a search failure")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address for all requests (host:port)")
	cmd.Flags().Bool("no-mirror", false, "Do not maintain the SQLite mirror of the catalog")
	cmd.Flags().Bool("no-listing", false, "Do not regenerate the Markdown listing")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Verbose)

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildCrawlConfig loads the shared configuration and applies the crawl
// flags the user set explicitly.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("marker") {
		if cfg.Marker, err = flags.GetString("marker"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("budget") {
		if cfg.Budget, err = flags.GetDuration("budget"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retry-pause") {
		if cfg.RetryPause, err = flags.GetDuration("retry-pause"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	noMirror, err := flags.GetBool("no-mirror")
	if err != nil {
		return nil, err
	}
	if noMirror {
		cfg.MirrorPath = ""
	}

	noListing, err := flags.GetBool("no-listing")
	if err != nil {
		return nil, err
	}
	if noListing {
		cfg.ListingPath = ""
	}

	return cfg, nil
}

// runCrawl wires the components and runs one crawl. The summary is written
// to out even when the run fails.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	client, err := transport.NewClient(transport.Options{
		Timeout:      cfg.Timeout,
		UserAgent:    cfg.UserAgent,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.Token == "" {
		logger.Warn("no search token set, the search quota will be small",
			"env", config.EnvToken)
	}

	sched := newScheduler(cfg)

	searcher := search.NewClient(client, ratelimit.New(ratelimit.WithLogger(logger)),
		search.WithBaseURL(cfg.SearchBaseURL),
		search.WithPerPage(sched.PageSize()),
		search.WithToken(cfg.Token),
		search.WithQuery(cfg.Query),
		search.WithMaxRetries(cfg.MaxRetries),
		search.WithLogger(logger),
	)

	prober, err := detect.NewMarkerProber(client, cfg.Marker,
		detect.WithMaxScripts(cfg.MaxScripts),
		detect.WithMaxBodySize(cfg.MaxBodySize),
		detect.WithProberLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}

	pool := probe.NewPool(prober, detect.NewReachabilityVerifier(client),
		probe.WithWorkers(cfg.Workers),
		probe.WithLogger(logger),
	)

	st, err := state.Load(cfg.StatePath, sched.Initial())
	switch {
	case errors.Is(err, state.ErrStateCorrupt):
		logger.Warn("state file is corrupt, starting from the top", "error", err)
	case err != nil:
		return err
	}

	cat, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	opts := []crawl.Option{
		crawl.WithBudget(cfg.Budget),
		crawl.WithRetryPause(cfg.RetryPause),
		crawl.WithLogger(logger),
	}
	if cfg.ListingPath != "" {
		listingPath := cfg.ListingPath
		opts = append(opts, crawl.WithListing(func(entries []model.CatalogEntry) error {
			return report.WriteListingFile(listingPath, entries)
		}))
	}

	logger.Info("starting crawl",
		"ceiling", st.Position().Ceiling,
		"gradient", st.Position().Gradient,
		"scanned", st.ScannedCount(),
		"catalog", cat.Len(),
		"budget", cfg.Budget,
		"workers", pool.Workers(),
	)

	summary, runErr := crawl.New(sched, searcher, pool, cat, st, cfg.StatePath, opts...).Run(ctx)

	if _, err := report.NewSimpleWriter(out).WriteSummary(summary); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write summary: %w", err))
	}
	return runErr
}

// newScheduler builds the window scheduler from cfg.
func newScheduler(cfg *config.Config) *scheduler.Scheduler {
	return scheduler.New(
		scheduler.WithTop(cfg.Top),
		scheduler.WithDefaultGradient(cfg.Gradient),
		scheduler.WithFloor(cfg.Floor),
		scheduler.WithMinGradient(cfg.MinGradient),
		scheduler.WithPageSize(search.DefaultPerPage),
	)
}

// openCatalog opens the catalog with its optional mirror and shared lock.
// The returned function releases both.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, func(), error) {
	opts := []catalog.Option{catalog.WithLogger(logger)}
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("failed to close catalog resource", "error", err)
			}
		}
	}

	var mirror *catalog.Mirror
	if cfg.MirrorPath != "" {
		var err error
		mirror, err = catalog.OpenMirror(cfg.MirrorPath, catalog.DefaultMirrorOptions())
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, mirror.Close)
		opts = append(opts, catalog.WithMirror(mirror))
		logger.Debug("catalog mirror opened", "path", mirror.Path())
	}

	if cfg.RedisAddress != "" {
		store := catalog.NewRedisStore(cfg.RedisAddress)
		closers = append(closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to reach lock server at %s: %w", cfg.RedisAddress, err)
		}
		opts = append(opts, catalog.WithLocker(catalog.NewTokenLocker(store,
			catalog.WithLockKey(cfg.LockKey),
			catalog.WithLockTTL(cfg.LockTTL),
		)))
		logger.Debug("shared catalog lock enabled", "address", cfg.RedisAddress, "key", cfg.LockKey)
	}

	cat, err := catalog.Open(cfg.CatalogPath, opts...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	if mirror != nil {
		warnMirrorDrift(ctx, cat, mirror, logger)
	}
	return cat, closeAll, nil
}

// warnMirrorDrift logs when the mirror row count differs from the primary
// store. The primary store stays authoritative.
func warnMirrorDrift(ctx context.Context, cat *catalog.Catalog, mirror *catalog.Mirror, logger *slog.Logger) {
	rows, err := mirror.Count(ctx)
	if err != nil {
		logger.Warn("failed to count catalog mirror rows", "path", mirror.Path(), "error", err)
		return
	}
	if rows != cat.Len() {
		logger.Warn("catalog mirror out of sync",
			"catalog", cat.Path(),
			"entries", cat.Len(),
			"mirror", mirror.Path(),
			"rows", rows,
		)
	}
}
