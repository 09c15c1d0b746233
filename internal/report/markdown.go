package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/starsweep/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs the catalog as a Markdown listing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteCatalog outputs a title, the entry count and a table of entries.
func (w *MarkdownWriter) WriteCatalog(entries []model.CatalogEntry) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Documentation Sites")
	md.PlainText("")
	md.PlainTextf("%s sites listed.", strconv.Itoa(len(entries)))
	md.PlainText("")

	if len(entries) > 0 {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				DisplayName(e.Alias),
				"`" + e.Alias + "`",
				"<" + e.URL + ">",
				escapeCell(e.Description),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Name", "Alias", "URL", "Description"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeFooter writes the listing footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [starsweep](https://github.com/nao1215/starsweep)*")
}

// DisplayName turns an alias into a title-cased name for display.
func DisplayName(alias string) string {
	return cases.Title(language.English).String(alias)
}

// escapeCell keeps a description inside its table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
