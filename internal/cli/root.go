package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
	ExitNotFound     = 5
)

var rootCmd = &cobra.Command{
	Use:   "asmexplain",
	Short: "Explain disassembled functions with an LLM",
	Long: "asmexplain turns per-function disassembly into plain-language explanations.\n" +
		"It produces disassembly artifacts from ELF binaries, serves explanations over HTTP,\n" +
		"and caches every explanation so each function is sent to the model only once.",
	SilenceUsage: true,
}

// Global flags
var (
	flagProvider   string
	flagModel      string
	flagStorageDir string
	flagLogLevel   string
)

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	if err := execute(context.Background()); err != nil {
		// Cobra (or fang) already prints the error
		return ExitUsageError
	}

	return exitCode
}

// execute runs the command tree through fang when attached to a terminal and
// through plain cobra otherwise, so piped output stays free of styling.
func execute(ctx context.Context) error {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return rootCmd.ExecuteContext(ctx)
	}
	return fang.Execute(ctx, rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	)
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print asmexplain version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "asmexplain version %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProvider, "provider", "", "LLM provider (google)")
	pf.StringVar(&flagModel, "model", "", "Model name")
	pf.StringVar(&flagStorageDir, "storage-dir", "", "Root of the artifact tree")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}
