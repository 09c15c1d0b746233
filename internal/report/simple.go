package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/starsweep/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds descriptions to catalog output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteCatalog outputs one line per entry.
func (w *SimpleWriter) WriteCatalog(entries []model.CatalogEntry) (int, error) {
	var sb strings.Builder

	if len(entries) == 0 {
		sb.WriteString("Catalog is empty.\n")
		return io.WriteString(w.output, sb.String())
	}

	width := 0
	for _, e := range entries {
		width = max(width, len(e.Alias))
	}

	for _, e := range entries {
		fmt.Fprintf(&sb, "%-*s  %s\n", width, e.Alias, e.URL)
		if w.verbose && e.Description != "" {
			fmt.Fprintf(&sb, "%-*s  %s\n", width, "", e.Description)
		}
	}
	fmt.Fprintf(&sb, "\n%d sites\n", len(entries))

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the end-of-run summary of a crawl.
func (w *SimpleWriter) WriteSummary(summary model.Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	sb.WriteString("Crawl Summary\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "New findings:   %d\n", summary.NewFindings)
	fmt.Fprintf(&sb, "Batches:        %d\n", summary.Batches)
	fmt.Fprintf(&sb, "Probed domains: %d\n", summary.Probed)
	fmt.Fprintf(&sb, "Stop reason:    %s\n", summary.StopReason)
	fmt.Fprintf(&sb, "Elapsed:        %s\n", summary.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Next window:    ceiling=%d gradient=%d\n", summary.Ceiling, summary.Gradient)

	return io.WriteString(w.output, sb.String())
}
