package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dshills/asmexplain/internal/artifact"
)

// WriteFunctions prints a function index as an aligned table, or as JSON
// when format is "json".
func WriteFunctions(w io.Writer, fns []artifact.Function, format string) error {
	switch format {
	case "json":
		if fns == nil {
			fns = []artifact.Function{}
		}
		data, err := json.MarshalIndent(fns, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "", "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		ew := &errWriter{w: tw}
		ew.printf("ADDRESS\tSIZE\tINSTRUCTIONS\tNAME\n")
		for _, fn := range fns {
			ew.printf("%s\t%d\t%d\t%s\n", fn.Address, fn.Size, fn.Instructions, fn.Name)
		}
		if ew.err != nil {
			return ew.err
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
