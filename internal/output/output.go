package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/asmexplain/internal/explain"
)

// Formats lists the accepted --format values.
var Formats = []string{"text", "json", "markdown", "pretty"}

// Writer writes an explanation in a specific format.
type Writer interface {
	Write(w io.Writer, rec explain.Record) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "pretty":
		return &PrettyWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteRecord writes rec to the specified output (file path or stdout).
func WriteRecord(rec explain.Record, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, rec)
}
