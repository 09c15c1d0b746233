package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/starsweep/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of concurrent probe tasks.
const DefaultWorkers = 10

// Pool executes probe+verify tasks for a batch of candidates on a fixed
// number of goroutines.
type Pool struct {
	prober   Prober
	verifier Verifier
	workers  int
	logger   *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the maximum number of concurrent tasks.
// Default is 10 if not specified.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger used for per-task logging.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a Pool that probes with prober and confirms with verifier.
func NewPool(prober Prober, verifier Verifier, opts ...PoolOption) *Pool {
	p := &Pool{
		prober:   prober,
		verifier: verifier,
		workers:  DefaultWorkers,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Workers returns the configured concurrency.
func (p *Pool) Workers() int {
	return p.workers
}

// Run probes every candidate whose domain is not already scanned and returns
// one outcome per dispatched task, in completion order.
//
// isScanned reports whether a domain was scanned in an earlier batch or run.
// Candidates sharing a domain within the batch are dispatched once.
//
// stop is consulted once a worker slot is free and before each dispatch.
// Once it reports true, no further task is submitted, tasks already running
// are allowed to finish, and complete is false. A nil stop never stops.
func (p *Pool) Run(
	ctx context.Context,
	candidates []model.Candidate,
	isScanned func(domain string) bool,
	stop func() bool,
) (outcomes []model.ProbeOutcome, complete bool) {
	results := make(chan model.ProbeOutcome, len(candidates))
	dispatched := make(map[string]bool, len(candidates))
	complete = true

	// slots bounds the running tasks. A slot is taken before stop is asked,
	// so a stop raised while waiting for a slot is seen.
	slots := make(chan struct{}, p.workers)
	var g errgroup.Group

	for _, cand := range candidates {
		domain := DomainOf(cand.Homepage)
		if domain == "" {
			p.logger.Debug("skipping candidate without usable homepage",
				"repo", cand.FullName,
				"homepage", cand.Homepage,
			)
			continue
		}
		if dispatched[domain] || (isScanned != nil && isScanned(domain)) {
			continue
		}

		slots <- struct{}{}
		if stop != nil && stop() {
			<-slots
			complete = false
			break
		}

		dispatched[domain] = true
		g.Go(func() error {
			defer func() { <-slots }()
			results <- p.probe(ctx, cand, domain)
			return nil
		})
	}

	// Tasks never return errors, so Wait is only a join point.
	_ = g.Wait() //nolint:errcheck // Tasks always return nil
	close(results)

	outcomes = make([]model.ProbeOutcome, 0, len(dispatched))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	return outcomes, complete
}

// probe runs one task. It never panics and always returns an outcome for domain.
func (p *Pool) probe(ctx context.Context, cand model.Candidate, domain string) (outcome model.ProbeOutcome) {
	outcome = model.ProbeOutcome{Domain: domain}
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("probe task panicked",
				"domain", domain,
				"panic", fmt.Sprint(r),
			)
			outcome = model.ProbeOutcome{Domain: domain}
		}
	}()

	for _, target := range Variants(cand.Homepage) {
		if ctx.Err() != nil {
			return outcome
		}

		credential, err := p.prober.Scan(ctx, target)
		if err != nil {
			p.logger.Debug("probe failed", "target", target, "error", err)
			continue
		}
		if credential == "" {
			continue
		}

		p.logger.Info("marker found",
			"target", target,
			"credential", credential,
		)

		ok, err := p.verifier.Check(ctx, target)
		if err != nil {
			p.logger.Debug("verification failed", "target", target, "error", err)
			return outcome
		}
		if !ok {
			p.logger.Info("marker not live", "target", target)
			return outcome
		}

		alias := Alias(cand.Name)
		if alias == "" {
			alias = Alias(domain)
		}
		outcome.VerifiedURL = target
		outcome.Alias = alias
		outcome.Description = Describe(alias, cand.Description)

		p.logger.Info("site verified",
			"domain", domain,
			"url", target,
			"alias", alias,
			"elapsed", time.Since(startTime).Round(time.Millisecond),
		)
		return outcome
	}

	return outcome
}
