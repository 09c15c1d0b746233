package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/starsweep/internal/catalog"
	"github.com/nao1215/starsweep/internal/model"
	"github.com/nao1215/starsweep/internal/probe"
	"github.com/nao1215/starsweep/internal/scheduler"
	"github.com/nao1215/starsweep/internal/search"
	"github.com/nao1215/starsweep/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedSearcher answers with respond and records every window asked for.
// Each call advances the clock by one minute.
type scriptedSearcher struct {
	clock   *fakeClock
	respond func(call int, w model.Window) (*search.Result, error)

	mu      sync.Mutex
	windows []model.Window
}

func (s *scriptedSearcher) Search(_ context.Context, w model.Window) (*search.Result, error) {
	s.mu.Lock()
	s.windows = append(s.windows, w)
	call := len(s.windows)
	s.mu.Unlock()

	s.clock.Advance(time.Minute)
	return s.respond(call, w)
}

func (s *scriptedSearcher) Windows() []model.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Window, len(s.windows))
	copy(out, s.windows)
	return out
}

func fullPage(w model.Window) *search.Result {
	items := make([]model.Candidate, 0, 100)
	for i := range 100 {
		items = append(items, model.Candidate{
			Name:  fmt.Sprintf("repo%d", i),
			Stars: w.Max - i*(w.Max-w.Min)/100,
		})
	}
	return &search.Result{Batch: model.NewBatchResult(items)}
}

func emptyPage() *search.Result {
	return &search.Result{Batch: model.NewBatchResult(nil)}
}

type harness struct {
	t         *testing.T
	clock     *fakeClock
	searcher  *scriptedSearcher
	state     *state.CrawlState
	statePath string
	catalog   *catalog.Catalog
	prober    probe.Prober
	sleeps    []time.Duration
	listings  int
}

func newHarness(t *testing.T, pos model.Position, respond func(int, model.Window) (*search.Result, error)) *harness {
	t.Helper()

	dir := t.TempDir()
	clock := newFakeClock()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.json"), catalog.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	return &harness{
		t:         t,
		clock:     clock,
		searcher:  &scriptedSearcher{clock: clock, respond: respond},
		state:     state.New(pos),
		statePath: filepath.Join(dir, "state.json"),
		catalog:   cat,
		prober: probe.ProberFunc(func(context.Context, string) (string, error) {
			return "", nil
		}),
	}
}

func (h *harness) crawler(budget time.Duration, opts ...Option) *Crawler {
	pool := probe.NewPool(h.prober,
		probe.VerifierFunc(func(context.Context, string) (bool, error) { return true, nil }),
		probe.WithLogger(quietLogger()),
	)
	base := []Option{
		WithBudget(budget),
		WithClock(h.clock.Now),
		WithRetryPause(30 * time.Second),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			h.clock.Advance(d)
			return nil
		}),
		WithListing(func([]model.CatalogEntry) error {
			h.listings++
			return nil
		}),
		WithLogger(quietLogger()),
	}
	return New(scheduler.New(), h.searcher, pool, h.catalog, h.state, h.statePath, append(base, opts...)...)
}

func TestRunStopsOnBudget(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 500000, Gradient: 1000},
		func(int, model.Window) (*search.Result, error) { return emptyPage(), nil })

	summary, err := h.crawler(3 * time.Minute).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StopReason != model.StopBudget {
		t.Errorf("expected StopBudget, got %s", summary.StopReason)
	}
	if summary.Batches != 3 {
		t.Errorf("expected 3 batches, got %d", summary.Batches)
	}
	if summary.Elapsed != 3*time.Minute {
		t.Errorf("expected 3m elapsed, got %v", summary.Elapsed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 500000, Gradient: 1000}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.searcher.respond = func(call int, _ model.Window) (*search.Result, error) {
		if call == 2 {
			cancel()
			return nil, context.Canceled
		}
		return emptyPage(), nil
	}

	summary, err := h.crawler(0).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StopReason != model.StopInterrupted {
		t.Errorf("expected StopInterrupted, got %s", summary.StopReason)
	}
	if summary.Batches != 2 {
		t.Errorf("expected 2 batches, got %d", summary.Batches)
	}
}

func TestRunAdvancesFullPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) {
			items := make([]model.Candidate, 0, 100)
			for i := range 100 {
				items = append(items, model.Candidate{Stars: 1000 - i*150/99})
			}
			return &search.Result{Batch: model.NewBatchResult(items)}, nil
		})

	if _, err := h.crawler(time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := model.Position{Ceiling: 849, Gradient: 150}
	if got := h.state.Position(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	loaded, err := state.Load(h.statePath, model.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Position() != want {
		t.Errorf("checkpoint holds %+v, want %+v", loaded.Position(), want)
	}
}

func TestRunEmptyWindowWidens(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 500, Gradient: 300},
		func(int, model.Window) (*search.Result, error) { return emptyPage(), nil })

	if _, err := h.crawler(time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := model.Position{Ceiling: 200, Gradient: 600}
	if got := h.state.Position(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestRunExhaustionResets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 2000, Gradient: 1000},
		func(int, model.Window) (*search.Result, error) { return emptyPage(), nil })

	summary, err := h.crawler(0).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.StopReason != model.StopExhausted {
		t.Errorf("expected StopExhausted, got %s", summary.StopReason)
	}

	top := scheduler.New().Initial()
	if h.state.Position() != top {
		t.Errorf("expected reset to %+v, got %+v", top, h.state.Position())
	}
	loaded, err := state.Load(h.statePath, model.Position{Ceiling: 1, Gradient: 1})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Position() != top {
		t.Errorf("reset not checkpointed: %+v", loaded.Position())
	}
}

func TestRunSkipsScannedDomains(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) {
			cands := []model.Candidate{
				{Name: "old", Homepage: "https://www.example.com"},
				{Name: "new", Homepage: "https://fresh.dev"},
			}
			return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
		})
	h.state.MarkScanned("example.com")

	var mu sync.Mutex
	var targets []string
	h.prober = probe.ProberFunc(func(_ context.Context, target string) (string, error) {
		mu.Lock()
		targets = append(targets, target)
		mu.Unlock()
		return "", nil
	})

	// The budget outlasts the clock step of each search, so the batch is dispatched.
	summary, err := h.crawler(time.Hour).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(targets) == 0 {
		t.Fatal("expected fresh.dev to be probed")
	}
	for _, target := range targets {
		if target == "https://www.example.com" || target == "https://docs.example.com" {
			t.Errorf("scanned domain was probed: %s", target)
		}
	}
	if summary.Probed != 1 {
		t.Errorf("expected 1 probed domain, got %d", summary.Probed)
	}
	if !h.state.IsScanned("fresh.dev") {
		t.Error("expected fresh.dev to be marked scanned")
	}
}

func TestRunRecordsFindings(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(call int, _ model.Window) (*search.Result, error) {
			if call > 1 {
				return emptyPage(), nil
			}
			cands := []model.Candidate{
				{Name: "Widget", Homepage: "https://widget.dev", Description: "Widget docs"},
				{Name: "plain", Homepage: "https://plain.dev"},
			}
			return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
		})
	h.prober = probe.ProberFunc(func(_ context.Context, target string) (string, error) {
		if target == "https://widget.dev" {
			return target, nil
		}
		return "", nil
	})

	summary, err := h.crawler(2 * time.Minute).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.NewFindings != 1 {
		t.Errorf("expected 1 finding, got %d", summary.NewFindings)
	}
	entries := h.catalog.List()
	if len(entries) != 1 || entries[0].Alias != "widget" || entries[0].URL != "https://widget.dev" {
		t.Errorf("unexpected catalog %+v", entries)
	}
	if found := h.state.Found(); len(found) != 1 || found[0] != "https://widget.dev" {
		t.Errorf("unexpected found sites %v", found)
	}
	if h.listings != 1 {
		t.Errorf("expected listing regenerated once, got %d", h.listings)
	}
}

func TestRunDuplicateAliasNotCounted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) {
			cands := []model.Candidate{{Name: "widget", Homepage: "https://widget.dev"}}
			return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
		})
	if _, err := h.catalog.Append(context.Background(),
		model.CatalogEntry{Alias: "widget", URL: "https://elsewhere.dev"}); err != nil {
		t.Fatal(err)
	}
	h.prober = probe.ProberFunc(func(_ context.Context, target string) (string, error) { return target, nil })

	summary, err := h.crawler(time.Hour).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.state.IsScanned("widget.dev") {
		t.Fatal("expected widget.dev to be probed")
	}
	if summary.NewFindings != 0 {
		t.Errorf("expected no new findings, got %d", summary.NewFindings)
	}
	if h.listings != 0 {
		t.Errorf("expected no listing regeneration, got %d", h.listings)
	}
}

func TestRunIncompleteBatchKeepsWindow(t *testing.T) {
	t.Parallel()

	start := model.Position{Ceiling: 1000, Gradient: 200}
	h := newHarness(t, start, nil)
	h.searcher.respond = func(int, model.Window) (*search.Result, error) {
		// The budget runs out while the batch is being dispatched.
		h.clock.Advance(time.Hour)
		cands := []model.Candidate{{Name: "a", Homepage: "https://a.dev"}}
		return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
	}

	summary, err := h.crawler(time.Minute).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.StopReason != model.StopBudget {
		t.Errorf("expected StopBudget, got %s", summary.StopReason)
	}
	if h.state.Position() != start {
		t.Errorf("incomplete batch advanced the window to %+v", h.state.Position())
	}
	if h.state.IsScanned("a.dev") {
		t.Error("undispatched domain must not be marked scanned")
	}
}

func TestRunInterruptedProbesAreNotMarkedScanned(t *testing.T) {
	t.Parallel()

	start := model.Position{Ceiling: 1000, Gradient: 200}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, start, func(int, model.Window) (*search.Result, error) {
		cands := []model.Candidate{
			{Name: "a", Homepage: "https://a.dev"},
			{Name: "b", Homepage: "https://b.dev"},
		}
		return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
	})

	aScanned := make(chan struct{})
	h.prober = probe.ProberFunc(func(_ context.Context, target string) (string, error) {
		switch target {
		case "https://a.dev":
			close(aScanned)
			return target, nil
		case "https://b.dev":
			// The operator interrupts while b is being probed.
			<-aScanned
			cancel()
		}
		return "", nil
	})

	summary, err := h.crawler(time.Hour).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.StopReason != model.StopInterrupted {
		t.Errorf("expected StopInterrupted, got %s", summary.StopReason)
	}
	if summary.NewFindings != 1 {
		t.Errorf("expected the verified finding to be recorded, got %d", summary.NewFindings)
	}
	if !h.state.IsScanned("a.dev") {
		t.Error("verified domain must be marked scanned")
	}
	if h.state.IsScanned("b.dev") {
		t.Error("interrupted negative probe must not be marked scanned")
	}
	if h.state.Position() != start {
		t.Errorf("interrupted batch advanced the window to %+v", h.state.Position())
	}
}

func TestRunRateLimitedRetriesSameWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(call int, _ model.Window) (*search.Result, error) {
			if call == 1 {
				return nil, fmt.Errorf("%w: quota", search.ErrRateLimited)
			}
			if call == 2 {
				return nil, fmt.Errorf("%w: status 502", search.ErrTransient)
			}
			return emptyPage(), nil
		})

	summary, err := h.crawler(time.Hour).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	windows := h.searcher.Windows()
	if len(windows) < 3 || windows[0] != windows[1] || windows[1] != windows[2] {
		t.Errorf("expected the window to be retried unchanged, got %v", windows[:min(3, len(windows))])
	}
	if len(h.sleeps) != 2 || h.sleeps[0] != 30*time.Second {
		t.Errorf("expected two retry pauses of 30s, got %v", h.sleeps)
	}
	if summary.Batches < 3 {
		t.Errorf("expected failed batches to be counted, got %d", summary.Batches)
	}
}

func TestRunInvalidQuerySkipsWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) {
			return nil, fmt.Errorf("%w: validation failed", search.ErrInvalidQuery)
		})

	if _, err := h.crawler(time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := model.Position{Ceiling: 800, Gradient: 200}
	if got := h.state.Position(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if len(h.sleeps) != 0 {
		t.Errorf("invalid query must not pause, got %v", h.sleeps)
	}
}

func TestRunResumesSameWindowSequence(t *testing.T) {
	t.Parallel()

	respond := func(_ int, w model.Window) (*search.Result, error) {
		if w.Max%3 == 0 {
			return emptyPage(), nil
		}
		return fullPage(w), nil
	}
	start := model.Position{Ceiling: 20000, Gradient: 1000}

	straight := newHarness(t, start, respond)
	if _, err := straight.crawler(8 * time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	first := newHarness(t, start, respond)
	if _, err := first.crawler(3 * time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	resumedState, err := state.Load(first.statePath, model.Position{Ceiling: 1, Gradient: 1})
	if err != nil {
		t.Fatal(err)
	}
	second := newHarness(t, start, respond)
	second.state = resumedState
	if _, err := second.crawler(5 * time.Minute).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := straight.searcher.Windows()
	got := append(first.searcher.Windows(), second.searcher.Windows()...)
	if len(got) != len(want) {
		t.Fatalf("resumed run asked %d windows, uninterrupted asked %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d: resumed %v, uninterrupted %v", i, got[i], want[i])
		}
	}
}

func TestRunStorageErrorIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) { return emptyPage(), nil })

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	h.statePath = filepath.Join(blocker, "state.json")

	_, err := h.crawler(time.Hour).Run(context.Background())
	if err == nil {
		t.Fatal("expected storage error")
	}
	if len(h.searcher.Windows()) != 1 {
		t.Errorf("expected the run to stop after the first batch, got %d", len(h.searcher.Windows()))
	}
}

func TestRunListingErrorIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Position{Ceiling: 1000, Gradient: 200},
		func(int, model.Window) (*search.Result, error) {
			cands := []model.Candidate{{Name: "widget", Homepage: "https://widget.dev"}}
			return &search.Result{Candidates: cands, Batch: model.NewBatchResult(cands)}, nil
		})
	h.prober = probe.ProberFunc(func(_ context.Context, target string) (string, error) { return target, nil })

	listingErr := errors.New("read-only filesystem")
	_, err := h.crawler(time.Hour, WithListing(func([]model.CatalogEntry) error { return listingErr })).
		Run(context.Background())
	if !errors.Is(err, listingErr) {
		t.Errorf("expected listing error, got %v", err)
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	t.Run("returns after duration", func(t *testing.T) {
		t.Parallel()

		if err := sleepContext(context.Background(), time.Millisecond); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("interrupted by cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
