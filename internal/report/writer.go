package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/starsweep/internal/atomicfile"
	"github.com/nao1215/starsweep/internal/model"
)

// Format names accepted by NewWriter.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Writer outputs catalog entries.
type Writer interface {
	// WriteCatalog writes the entries, which are expected sorted by alias.
	// Returns the number of bytes written and any error encountered.
	WriteCatalog(entries []model.CatalogEntry) (int, error)
}

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}

// WriteListingFile regenerates the Markdown listing at path from entries,
// replacing the previous file atomically.
func WriteListingFile(path string, entries []model.CatalogEntry) error {
	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).WriteCatalog(entries); err != nil {
		return fmt.Errorf("failed to render listing: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // The listing is a public document
		return fmt.Errorf("failed to write listing: %w", err)
	}
	return nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
