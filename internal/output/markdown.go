package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/dshills/asmexplain/internal/explain"
)

// MarkdownWriter outputs a markdown document for one explanation.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, rec explain.Record) error {
	_, err := io.WriteString(w, renderMarkdown(rec))
	return err
}

func renderMarkdown(rec explain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Function `%s`\n\n", rec.Address)
	fmt.Fprintf(&b, "*File:* `%s`\n\n", rec.FileID)
	b.WriteString(strings.TrimSpace(rec.Explanation))
	b.WriteString("\n")
	return b.String()
}

// DefaultWrap is the word-wrap width used by PrettyWriter when Width is zero.
const DefaultWrap = 100

// PrettyWriter renders the markdown document for a terminal.
type PrettyWriter struct {
	Width int
}

func (p *PrettyWriter) Write(w io.Writer, rec explain.Record) error {
	width := p.Width
	if width <= 0 {
		width = DefaultWrap
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(renderMarkdown(rec))
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
