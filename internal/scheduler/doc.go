// Package scheduler turns a search API that caps every query at 1000 results
// into full coverage of the star-count rank space.
//
// The scheduler keeps a window [ceiling-gradient, ceiling] and walks it down
// the rank space. After every batch the gradient (window width) adapts to the
// local density observed by the search call:
//
//   - empty batch: the region is sparse, so the ceiling drops by the gradient
//     and the gradient doubles
//   - partial batch: the window was fully captured, so the ceiling drops below
//     the smallest rank seen and the gradient grows by half
//   - full batch: the window may have been truncated, so the ceiling drops
//     below the smallest rank seen and the gradient shrinks to the observed spread
//
// When the ceiling falls below the floor, the sweep is complete and the caller
// resets the position to the top of the rank space.
//
// The scheduler is pure: it never performs I/O, so the same sequence of batch
// results always produces the same sequence of windows. Resumed runs rely on this.
package scheduler
