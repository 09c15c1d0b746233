// Package model defines the data structures shared by the starsweep crawler.
//
// This package contains the following main types:
//   - Candidate: A repository returned by one search call, not yet probed
//   - Window: A contiguous star-count range queried in one search call
//   - BatchResult: What a search call observed, used to adapt the next window
//   - ProbeOutcome: The result of probing one candidate domain
//   - CatalogEntry: A confirmed site recorded in the shared catalog
//   - Summary: The end-of-run report printed by the CLI
//
// Models live in their own package because the scheduler, probe pool, state
// store and catalog all exchange them.
package model
