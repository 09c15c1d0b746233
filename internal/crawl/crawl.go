package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/starsweep/internal/model"
	"github.com/nao1215/starsweep/internal/scheduler"
	"github.com/nao1215/starsweep/internal/search"
	"github.com/nao1215/starsweep/internal/state"
)

// DefaultRetryPause is how long the loop waits after a rate-limited or
// transient search failure before retrying the same window.
const DefaultRetryPause = 60 * time.Second

// Searcher fetches one page of candidates for a window.
type Searcher interface {
	Search(ctx context.Context, window model.Window) (*search.Result, error)
}

// Dispatcher probes a batch of candidates. See probe.Pool.Run.
type Dispatcher interface {
	Run(ctx context.Context, candidates []model.Candidate,
		isScanned func(domain string) bool, stop func() bool) ([]model.ProbeOutcome, bool)
}

// Catalog records verified sites.
type Catalog interface {
	Append(ctx context.Context, entry model.CatalogEntry) (bool, error)
	List() []model.CatalogEntry
}

// ListingFunc regenerates the derived listing from the catalog entries.
type ListingFunc func(entries []model.CatalogEntry) error

// Crawler is the sweep loop. A Crawler is used for one Run.
type Crawler struct {
	scheduler *scheduler.Scheduler
	searcher  Searcher
	pool      Dispatcher
	catalog   Catalog
	state     *state.CrawlState
	statePath string

	listing    ListingFunc
	budget     time.Duration
	retryPause time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithBudget sets the wall-clock budget of a run. Zero means unlimited.
func WithBudget(d time.Duration) Option {
	return func(c *Crawler) {
		if d >= 0 {
			c.budget = d
		}
	}
}

// WithRetryPause sets the wait after a rate-limited or transient failure.
func WithRetryPause(d time.Duration) Option {
	return func(c *Crawler) {
		if d >= 0 {
			c.retryPause = d
		}
	}
}

// WithListing regenerates a listing after every batch with new findings.
func WithListing(fn ListingFunc) Option {
	return func(c *Crawler) {
		c.listing = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleep replaces the interruptible sleep used for retry pauses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Crawler) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler. st is mutated in place and saved to statePath after
// every batch.
func New(
	sched *scheduler.Scheduler,
	searcher Searcher,
	pool Dispatcher,
	catalog Catalog,
	st *state.CrawlState,
	statePath string,
	opts ...Option,
) *Crawler {
	c := &Crawler{
		scheduler:  sched,
		searcher:   searcher,
		pool:       pool,
		catalog:    catalog,
		state:      st,
		statePath:  statePath,
		retryPause: DefaultRetryPause,
		now:        time.Now,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Run sweeps until the budget elapses, ctx is cancelled, or the rank space is
// exhausted. The returned error is non-nil only for storage failures; the
// summary is valid either way.
func (c *Crawler) Run(ctx context.Context) (model.Summary, error) {
	start := c.now()
	summary := model.Summary{}

	expired := func() bool {
		return c.budget > 0 && c.now().Sub(start) >= c.budget
	}
	stop := func() bool {
		return ctx.Err() != nil || expired()
	}
	finish := func(reason model.StopReason) model.Summary {
		pos := c.state.Position()
		summary.StopReason = reason
		summary.Elapsed = c.now().Sub(start)
		summary.Ceiling = pos.Ceiling
		summary.Gradient = pos.Gradient
		return summary
	}

	c.logger.Info("crawl started",
		"ceiling", c.state.Position().Ceiling,
		"gradient", c.state.Position().Gradient,
		"scannedDomains", c.state.ScannedCount(),
		"budget", c.budget,
	)

	for {
		if ctx.Err() != nil {
			return finish(model.StopInterrupted), nil
		}
		if expired() {
			return finish(model.StopBudget), nil
		}

		pos := c.state.Position()
		window, exhausted := c.scheduler.NextWindow(pos)
		if exhausted {
			c.state.Reset(c.scheduler.Reset())
			if err := c.state.Save(c.statePath); err != nil {
				return finish(model.StopExhausted), err
			}
			c.logger.Info("search space exhausted, position reset to top",
				"ceiling", c.state.Position().Ceiling,
			)
			return finish(model.StopExhausted), nil
		}

		summary.Batches++
		result, err := c.searcher.Search(ctx, window)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if err := c.handleSearchFailure(ctx, pos, window, err); err != nil {
				return finish(model.StopInterrupted), err
			}
			continue
		}

		outcomes, complete := c.pool.Run(ctx, result.Candidates, c.state.IsScanned, stop)
		// Probes cut short by cancellation may be incomplete.
		interrupted := ctx.Err() != nil
		if interrupted {
			complete = false
		}

		found, err := c.apply(context.WithoutCancel(ctx), outcomes, interrupted)
		summary.Probed += len(outcomes)
		summary.NewFindings += found
		if err != nil {
			return finish(model.StopInterrupted), err
		}

		if complete {
			c.state.SetPosition(c.scheduler.Advance(pos, result.Batch))
		}
		if err := c.state.Save(c.statePath); err != nil {
			return finish(model.StopInterrupted), err
		}
		if found > 0 && c.listing != nil {
			if err := c.listing(c.catalog.List()); err != nil {
				return finish(model.StopInterrupted), err
			}
		}

		next := c.state.Position()
		c.logger.Info("batch done",
			"window", window.String(),
			"items", result.Batch.Count,
			"candidates", len(result.Candidates),
			"probed", len(outcomes),
			"found", found,
			"complete", complete,
			"nextCeiling", next.Ceiling,
			"nextGradient", next.Gradient,
		)
	}
}

// handleSearchFailure applies a failed search to the state. Only storage
// errors are returned.
func (c *Crawler) handleSearchFailure(ctx context.Context, pos model.Position, window model.Window, err error) error {
	kind := search.Classify(err)

	if kind == model.FailureInvalidQuery {
		next := c.scheduler.Advance(pos, model.FailedBatch(kind))
		c.state.SetPosition(next)
		c.logger.Warn("search rejected window, skipping it",
			"window", window.String(),
			"error", err,
			"nextCeiling", next.Ceiling,
		)
		return c.state.Save(c.statePath)
	}

	c.logger.Warn("search failed, retrying window after pause",
		"window", window.String(),
		"failure", kind.String(),
		"error", err,
		"pause", c.retryPause,
	)
	// An interrupted pause ends the run at the top of the loop.
	_ = c.sleep(ctx, c.retryPause) //nolint:errcheck // ctx is checked by the caller loop
	return nil
}

// apply records probe outcomes. It returns the number of catalog entries added.
// After an interrupt, negative outcomes are not marked scanned: their probes
// may have been cut short, so the next run probes those domains again.
func (c *Crawler) apply(ctx context.Context, outcomes []model.ProbeOutcome, interrupted bool) (int, error) {
	found := 0
	for _, o := range outcomes {
		if !o.Verified() {
			if !interrupted {
				c.state.MarkScanned(o.Domain)
			}
			continue
		}
		c.state.MarkScanned(o.Domain)

		c.state.AddFound(o.VerifiedURL)
		added, err := c.catalog.Append(ctx, o.Entry())
		if err != nil {
			return found, fmt.Errorf("failed to record %s in catalog: %w", o.VerifiedURL, err)
		}
		if added {
			found++
		}
	}
	return found, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
