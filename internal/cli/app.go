package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/cache"
	"github.com/dshills/asmexplain/internal/config"
	"github.com/dshills/asmexplain/internal/explain"
	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/metrics"
	"github.com/dshills/asmexplain/internal/providers"
)

// buildOverrides collects the config keys set by global flags.
func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagStorageDir != "" {
		m["storageDir"] = flagStorageDir
	}
	if flagLogLevel != "" {
		m["logLevel"] = flagLogLevel
	}
	return m
}

// loadConfig loads the effective config with flag overrides applied. extra
// carries command-specific overrides.
func loadConfig(extra map[string]string) (config.Config, error) {
	overrides := buildOverrides()
	for k, v := range extra {
		overrides[k] = v
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) (*logging.LoggerCloser, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, Writer: w})
}

// providerSettings maps the config onto provider client settings.
func providerSettings(cfg config.Config, logger *log.Logger, m *metrics.Metrics) providers.Settings {
	return providers.Settings{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout(),
		Retry: providers.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay(),
		},
		RequestsPerMinute: cfg.RequestsPerMinute,
		Logger:            logger,
		Metrics:           m,
	}
}

// app holds the components shared by serve and explain.
type app struct {
	cfg      config.Config
	store    *artifact.Store
	service  *explain.Service
	registry *prometheus.Registry
	logger   *log.Logger
}

// newApp wires the explanation pipeline from cfg. A provider that cannot be
// constructed does not fail startup: cached explanations are still served
// and misses report the configuration error.
func newApp(cfg config.Config, logger *log.Logger) *app {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	store := artifact.NewStore(cfg.StorageDir)

	gen, genErr := providers.New(providerSettings(cfg, logger, m))
	if genErr != nil {
		logger.Warn("LLM provider unavailable; only cached explanations will be served", "err", genErr)
	}

	svc := explain.New(explain.Deps{
		Artifacts: store,
		Cache: cache.New(cache.Options{
			Dir:     cfg.StorageDir,
			Persist: cfg.Cache.Persist,
			Logger:  logger,
			Metrics: m,
		}),
		Generator:       gen,
		GeneratorErr:    genErr,
		TrimLimit:       cfg.TrimLimit,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		Logger:          logger,
		Metrics:         m,
	})
	return &app{cfg: cfg, store: store, service: svc, registry: reg, logger: logger}
}

// exitCodeFor maps a pipeline error to a process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, artifact.ErrInvalidID):
		return ExitUsageError
	case artifact.IsNotFound(err):
		return ExitNotFound
	case providers.IsAuthError(err):
		return ExitAuthError
	default:
		return ExitRuntimeError
	}
}

// fail reports err on stderr, with its remediation hint when there is one,
// and records the matching exit code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	exitCode = exitCodeFor(err)
}

func hintFor(err error) string {
	var ce *providers.ConfigurationError
	if errors.As(err, &ce) {
		return ce.Hint
	}
	var le *providers.LLMError
	if errors.As(err, &le) {
		return le.Hint()
	}
	return ""
}

// failConfig reports a configuration problem.
func failConfig(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = ExitAuthError
}
