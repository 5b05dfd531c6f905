package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/disasm"
	"github.com/dshills/asmexplain/internal/output"
)

var (
	flagFileID      string
	flagMinSize     uint64
	flagIndexFormat string
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <binary>",
	Short: "Produce disassembly artifacts for an ELF binary",
	Long: "Disassemble every function symbol of an ELF binary (x86-64, 386 or arm64)\n" +
		"into <storageDir>/<fileId>/disassembly/<address>.json and write the function index.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagIndexFormat != "text" && flagIndexFormat != "json" {
			return fmt.Errorf("unsupported output format: %s", flagIndexFormat)
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

		store := artifact.NewStore(cfg.StorageDir)
		res, err := disasm.Produce(cmd.Context(), store, args[0], disasm.Options{
			FileID:  flagFileID,
			MinSize: flagMinSize,
			Logger:  lc.Logger,
		})
		if err != nil {
			fail(err)
			return nil
		}

		fmt.Fprintf(os.Stderr, "Wrote %d functions (%s) to %s\n", len(res.Functions), res.Arch, store.FileDir(res.FileID))
		fmt.Fprintf(os.Stderr, "File id: %s\n", res.FileID)
		if err := output.WriteFunctions(cmd.OutOrStdout(), res.Functions, flagIndexFormat); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	disasmCmd.Flags().StringVar(&flagFileID, "file-id", "", "File id for the output directory (default: random UUID)")
	disasmCmd.Flags().Uint64Var(&flagMinSize, "min-size", 0, "Skip functions smaller than this many bytes")
	disasmCmd.Flags().StringVar(&flagIndexFormat, "format", "text", "Function index output format (text, json)")
}
