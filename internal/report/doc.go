// Package report renders the site catalog and crawl summaries.
//
// This package contains writers for different output formats:
//   - MarkdownWriter: the SITES.md listing regenerated after each productive batch
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface, so the CLI can pick one by name.
package report
