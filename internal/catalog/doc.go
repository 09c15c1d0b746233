// Package catalog maintains the shared catalog of verified sites.
//
// The primary store is a JSON document mapping each alias to its URL and
// description. An optional SQLite mirror holds the same rows for ad-hoc
// queries. Every mutation runs inside one critical section: an in-process
// mutex, plus a Redis token lock when several crawlers share the catalog.
// Inside it the primary store is re-read from disk, the alias checked, and
// both stores written, so appends are idempotent and an existing alias is
// never overwritten.
package catalog
