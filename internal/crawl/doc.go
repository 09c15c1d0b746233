// Package crawl runs the outer sweep loop.
//
// Each iteration asks the scheduler for a star-count window, fetches one page
// of search results for it, fans the unseen candidates out to the probe pool,
// applies the outcomes to the crawl state and the catalog, and checkpoints.
// The loop itself is sequential; probing is the only parallel region and the
// loop is the only writer of state.
//
// A run ends when its wall-clock budget elapses, when the context is
// cancelled, or when the sweep reaches the bottom of the rank space, in which
// case the position is reset to the top for the next run.
package crawl
