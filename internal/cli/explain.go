package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/asmexplain/internal/output"
)

var (
	flagFormat string
	flagOut    string
)

var explainCmd = &cobra.Command{
	Use:   "explain <fileId> <address>",
	Short: "Explain one function and print the result",
	Long: "Explain a single function through the same pipeline the HTTP service uses.\n" +
		"Cached explanations are returned without contacting the model.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := output.GetWriter(flagFormat); err != nil {
			return err
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			failConfig(err)
			return nil
		}
		lc, err := newLogger(cfg, os.Stderr)
		if err != nil {
			failConfig(err)
			return nil
		}
		defer lc.Close()

		a := newApp(cfg, lc.Logger)
		rec, err := a.service.Explain(cmd.Context(), args[0], args[1])
		if err != nil {
			fail(err)
			return nil
		}
		if err := output.WriteRecord(rec, flagFormat, flagOut); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown, pretty)")
	explainCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
}
