package scheduler

import (
	"github.com/nao1215/starsweep/internal/model"
)

// Default scheduling parameters.
const (
	// DefaultTop is the top of the rank space. No public repository is above it.
	DefaultTop = 500000

	// DefaultGradient is the window width a fresh sweep starts with.
	DefaultGradient = 1000

	// DefaultFloor is the ceiling below which the sweep is considered exhausted.
	DefaultFloor = 10

	// DefaultMinGradient bounds how narrow a window may shrink after a full batch.
	DefaultMinGradient = 100

	// DefaultPageSize is the maximum number of items one search call returns.
	DefaultPageSize = 100
)

// Scheduler computes search windows and adapts their width batch to batch.
type Scheduler struct {
	top             int
	defaultGradient int
	floor           int
	minGradient     int
	maxGradient     int
	pageSize        int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTop sets the top of the rank space.
func WithTop(top int) Option {
	return func(s *Scheduler) {
		if top > 0 {
			s.top = top
		}
	}
}

// WithDefaultGradient sets the gradient used on a fresh or reset sweep.
func WithDefaultGradient(gradient int) Option {
	return func(s *Scheduler) {
		if gradient > 0 {
			s.defaultGradient = gradient
		}
	}
}

// WithFloor sets the ceiling below which the sweep is exhausted.
// The floor must be at least 1: ceilings clamp at 0, so a zero floor is
// never passed.
func WithFloor(floor int) Option {
	return func(s *Scheduler) {
		if floor > 0 {
			s.floor = floor
		}
	}
}

// WithMinGradient sets the lower bound applied when a full batch shrinks the window.
func WithMinGradient(gradient int) Option {
	return func(s *Scheduler) {
		if gradient > 0 {
			s.minGradient = gradient
		}
	}
}

// WithMaxGradient sets the upper bound applied when a sparse region widens the window.
// Without it, repeated empty batches near the floor would double the gradient
// without limit.
func WithMaxGradient(gradient int) Option {
	return func(s *Scheduler) {
		if gradient > 0 {
			s.maxGradient = gradient
		}
	}
}

// WithPageSize sets the per-call item maximum of the search API.
func WithPageSize(size int) Option {
	return func(s *Scheduler) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// New creates a Scheduler. The maximum gradient defaults to the top of the rank space.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		top:             DefaultTop,
		defaultGradient: DefaultGradient,
		floor:           DefaultFloor,
		minGradient:     DefaultMinGradient,
		pageSize:        DefaultPageSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.maxGradient == 0 {
		s.maxGradient = s.top
	}
	if s.maxGradient < s.minGradient {
		s.maxGradient = s.minGradient
	}

	return s
}

// Initial returns the position a fresh sweep starts from.
func (s *Scheduler) Initial() model.Position {
	return model.Position{Ceiling: s.top, Gradient: s.defaultGradient}
}

// Reset returns the position after an exhausted sweep. It is the same as Initial.
func (s *Scheduler) Reset() model.Position {
	return s.Initial()
}

// PageSize returns the configured per-call item maximum.
func (s *Scheduler) PageSize() int {
	return s.pageSize
}

// NextWindow returns the next window to query.
// If the ceiling is below the floor, exhausted is true and the window is zero;
// the caller must Reset before scheduling again.
func (s *Scheduler) NextWindow(pos model.Position) (window model.Window, exhausted bool) {
	if pos.Ceiling < s.floor {
		return model.Window{}, true
	}
	return model.Window{
		Min: max(0, pos.Ceiling-pos.Gradient),
		Max: pos.Ceiling,
	}, false
}

// Advance returns the position after a batch.
//
// The ceiling never increases: ranks reported above the current ceiling (a
// repository gaining stars mid-sweep) are clamped. The gradient never drops
// below one.
func (s *Scheduler) Advance(pos model.Position, batch model.BatchResult) model.Position {
	switch batch.Failure {
	case model.FailureRateLimited, model.FailureTransient:
		return pos
	case model.FailureInvalidQuery:
		return model.Position{
			Ceiling:  max(0, pos.Ceiling-pos.Gradient),
			Gradient: pos.Gradient,
		}
	}

	switch {
	case batch.Count == 0:
		return model.Position{
			Ceiling:  max(0, pos.Ceiling-pos.Gradient),
			Gradient: s.widen(pos.Gradient * 2),
		}
	case batch.Count < s.pageSize:
		return model.Position{
			Ceiling:  s.below(pos, batch.MinRank),
			Gradient: s.widen(pos.Gradient + pos.Gradient/2),
		}
	default:
		spread := max(0, batch.MaxRank-batch.MinRank)
		return model.Position{
			Ceiling:  s.below(pos, batch.MinRank),
			Gradient: max(s.minGradient, spread, 1),
		}
	}
}

// below returns the ceiling just under the smallest rank observed.
func (s *Scheduler) below(pos model.Position, minRank int) int {
	next := min(minRank, pos.Ceiling) - 1
	return max(0, next)
}

// widen caps a grown gradient at the configured maximum.
func (s *Scheduler) widen(gradient int) int {
	return max(1, min(gradient, s.maxGradient))
}
