package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/asmexplain/internal/explain"
)

// JSONWriter outputs the record in the same shape the HTTP API returns.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, rec explain.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
