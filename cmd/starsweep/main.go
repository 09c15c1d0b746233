// Package main provides the entry point for the starsweep CLI.
//
// starsweep sweeps public repositories by star count, probes each
// repository's homepage for a configured marker, and records the verified
// sites in a catalog.
//
// Usage:
//
//	starsweep crawl --marker <substring>
//	starsweep catalog list
//
// See --help for all available options.
package main

// main is the entry point for starsweep.
func main() {
	Execute()
}
