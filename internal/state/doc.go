// Package state persists crawl progress between runs.
//
// A CrawlState records the scheduler position, the set of domains already
// probed and the URLs of verified sites. It is loaded once at start-up, mutated
// only by the crawl loop, and checkpointed after every batch with an atomic
// whole-file replace, so an interrupted run resumes where it stopped.
package state
