// Package probe runs the per-candidate probe and verify calls of one batch
// on a bounded worker pool.
//
// For every candidate whose homepage domain has not been scanned before, a
// task tries a short ordered list of URL variants against the Prober and,
// on the first hit, confirms it with the Verifier. Tasks never touch shared
// crawl state: each returns a ProbeOutcome through a channel, and the caller
// applies outcomes after the batch has joined.
//
// A failing or panicking task is downgraded to a negative outcome so one
// candidate can never abort the batch.
package probe
