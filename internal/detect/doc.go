// Package detect provides the default Prober and Verifier used by the probe pool.
//
// MarkerProber fetches a page, walks its HTML with golang.org/x/net/html and
// reports a hit when a configured marker appears in a script source URL, in
// inline script text, or in the body of one of the page's same-site scripts.
// Results are cached per URL so the homepage variants of popular hosts are
// not fetched twice in one run.
//
// ReachabilityVerifier confirms that a page is still being served.
package detect
