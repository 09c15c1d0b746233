package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Quota header names sent by the search API.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Defaults used when a response omits quota headers, and for wait bounds.
const (
	// DefaultRemaining is assumed when the remaining-quota header is missing.
	DefaultRemaining = 10

	// DefaultLimit is assumed when the quota-ceiling header is missing.
	// It matches the authenticated search quota of 30 requests per minute.
	DefaultLimit = 30

	// DefaultResetIn is assumed when the reset header is missing.
	DefaultResetIn = 60 * time.Second

	// DefaultReserveRatio is the share of the quota kept in reserve.
	DefaultReserveRatio = 0.1

	// DefaultMinReserve is the smallest reserve, in requests.
	DefaultMinReserve = 3

	// DefaultSafetyMargin is added past the reset timestamp to absorb clock skew.
	DefaultSafetyMargin = 5 * time.Second

	// DefaultMinWait is the shortest blocking wait.
	DefaultMinWait = 5 * time.Second

	// DefaultMaxWait bounds a single wait in case of a nonsensical reset header.
	DefaultMaxWait = 10 * time.Minute
)

// Quota is the rate-limit state reported by one response.
type Quota struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// ParseQuota reads the quota headers, falling back to defaults for missing
// or malformed values.
func ParseQuota(h http.Header, now time.Time) Quota {
	q := Quota{
		Remaining: DefaultRemaining,
		Limit:     DefaultLimit,
		Reset:     now.Add(DefaultResetIn),
	}
	if v, ok := headerInt(h, HeaderRemaining); ok {
		q.Remaining = v
	}
	if v, ok := headerInt(h, HeaderLimit); ok && v > 0 {
		q.Limit = v
	}
	if v, ok := headerInt(h, HeaderReset); ok {
		q.Reset = time.Unix(int64(v), 0)
	}
	return q
}

// headerInt parses an integer header value.
func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Governor throttles requests against the search API quota.
type Governor struct {
	reserveRatio float64
	minReserve   int
	safetyMargin time.Duration
	minWait      time.Duration
	maxWait      time.Duration

	now    func() time.Time
	sleep  SleepFunc
	logger *slog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithLogger sets the logger used to report waits.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSleep replaces the blocking wait. Used by tests.
func WithSleep(sleep SleepFunc) Option {
	return func(g *Governor) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithSafetyMargin sets the margin added past the reset timestamp.
func WithSafetyMargin(d time.Duration) Option {
	return func(g *Governor) {
		if d >= 0 {
			g.safetyMargin = d
		}
	}
}

// WithWaitBounds sets the shortest and longest single wait.
func WithWaitBounds(minWait, maxWait time.Duration) Option {
	return func(g *Governor) {
		if minWait >= 0 {
			g.minWait = minWait
		}
		if maxWait > 0 {
			g.maxWait = maxWait
		}
	}
}

// New creates a Governor with default reserve and wait bounds.
func New(opts ...Option) *Governor {
	g := &Governor{
		reserveRatio: DefaultReserveRatio,
		minReserve:   DefaultMinReserve,
		safetyMargin: DefaultSafetyMargin,
		minWait:      DefaultMinWait,
		maxWait:      DefaultMaxWait,
		now:          time.Now,
		sleep:        sleepContext,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.maxWait < g.minWait {
		g.maxWait = g.minWait
	}

	return g
}

// Reserve returns the number of requests kept in reserve for a quota ceiling.
func (g *Governor) Reserve(limit int) int {
	return max(g.minReserve, int(float64(limit)*g.reserveRatio))
}

// Delay returns how long to wait before the next request given the headers
// of the latest response. The second return value is false when no wait is needed.
func (g *Governor) Delay(h http.Header) (time.Duration, bool) {
	now := g.now()
	q := ParseQuota(h, now)
	if q.Remaining > g.Reserve(q.Limit) {
		return 0, false
	}
	return g.untilReset(q, now), true
}

// untilReset computes the bounded wait until the quota window resets.
func (g *Governor) untilReset(q Quota, now time.Time) time.Duration {
	wait := q.Reset.Sub(now) + g.safetyMargin
	return min(max(wait, g.minWait), g.maxWait)
}

// Throttle blocks when the latest response shows the quota at or below the
// reserve. It returns ctx.Err() if interrupted while waiting.
func (g *Governor) Throttle(ctx context.Context, h http.Header) error {
	wait, ok := g.Delay(h)
	if !ok {
		return nil
	}
	q := ParseQuota(h, g.now())
	g.logger.Warn("search quota low, waiting for reset",
		"remaining", q.Remaining,
		"limit", q.Limit,
		"wait", wait.Round(time.Second),
	)
	return g.sleep(ctx, wait)
}

// Backoff blocks after a hard-limit response. It honours Retry-After when
// present and otherwise waits for the quota reset, always at least the
// minimum wait.
func (g *Governor) Backoff(ctx context.Context, h http.Header) error {
	now := g.now()
	var wait time.Duration
	if secs, ok := headerInt(h, HeaderRetryAfter); ok && secs >= 0 {
		wait = min(max(time.Duration(secs)*time.Second, g.minWait), g.maxWait)
	} else {
		wait = g.untilReset(ParseQuota(h, now), now)
	}
	g.logger.Warn("search rate limited, backing off", "wait", wait.Round(time.Second))
	return g.sleep(ctx, wait)
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
