package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/asmexplain/internal/explain"
)

// TextWriter outputs the explanation as plain text under a short header.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, rec explain.Record) error {
	ew := &errWriter{w: w}

	ew.printf("Function %s in %s\n", rec.Address, rec.FileID)
	ew.println(strings.Repeat("─", 60))
	ew.println(strings.TrimRight(rec.Explanation, "\n"))
	if rec.Source != "" {
		ew.println(strings.Repeat("─", 60))
		ew.printf("Source: %s\n", rec.Source)
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
