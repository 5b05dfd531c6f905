package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

// knownModels are the Gemini models the explanation prompt is exercised with.
var knownModels = []string{
	"gemini-2.0-flash-lite",
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

var flagRemote bool

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models, or the models visible to the API key with --remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !flagRemote {
			fmt.Fprintf(out, "%s:\n", providers.DefaultProviderName)
			for _, m := range knownModels {
				fmt.Fprintf(out, "  - %s\n", m)
			}
			return nil
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			failConfig(err)
			return nil
		}
		g, err := providers.NewGemini(providerSettings(cfg, logging.Discard(), nil))
		if err != nil {
			fail(err)
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		models, err := g.ListModels(ctx)
		if err != nil {
			fail(err)
			return nil
		}
		for _, m := range models {
			if !supportsGenerate(m) {
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", strings.TrimPrefix(m.Name, "models/"), m.DisplayName)
		}
		return nil
	},
}

func supportsGenerate(m providers.ModelInfo) bool {
	for _, method := range m.SupportedGenerationMethods {
		if method == "generateContent" {
			return true
		}
	}
	return false
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			failConfig(err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Provider, cfg.Model)

		p, err := providers.New(providerSettings(cfg, logging.Discard(), nil))
		if err != nil {
			fail(err)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		_, err = p.Generate(ctx, providers.Request{
			SystemPrompt: "Respond with exactly: ok",
			UserPrompt:   "ping",
			MaxTokens:    10,
		})
		if err != nil {
			fail(err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", cfg.Provider)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsListCmd.Flags().BoolVar(&flagRemote, "remote", false, "Query the provider for available models")
}
