// Package transport builds the HTTP clients shared by the search client and
// the default probe detectors.
//
// Every client carries connection and response timeouts, a redirect limit and
// a User-Agent identifying the crawler. Probe traffic can optionally egress
// through a SOCKS5 proxy (golang.org/x/net/proxy), which keeps the crawler's
// own address out of the access logs of the sites it probes.
package transport
