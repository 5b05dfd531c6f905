package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the asmexplain configuration.
type Config struct {
	Provider string `json:"provider" validate:"required" jsonschema:"title=Provider,description=LLM provider (only google is supported),enum=google,enum=gemini,default=google"`
	Model    string `json:"model" validate:"required" jsonschema:"title=Model,description=Gemini model used for explanations,default=gemini-2.0-flash-lite"`
	// APIKey is read from the environment only and never written to the config file.
	APIKey string `json:"-"`

	StorageDir  string   `json:"storageDir" validate:"required" jsonschema:"title=Storage Directory,description=Root of the per-file artifact tree,default=storage/artifacts"`
	Listen      string   `json:"listen" validate:"required,listenaddr" jsonschema:"title=Listen Address,description=HTTP listen address (host:port),default=127.0.0.1:8000"`
	CORSOrigins []string `json:"corsOrigins,omitempty" jsonschema:"title=CORS Origins,description=Allowed browser origins; empty or * allows all"`
	LogLevel    string   `json:"logLevel" validate:"oneof=debug info warn error" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	MaxOutputTokens   int     `json:"maxOutputTokens" validate:"gte=1,lte=65536" jsonschema:"title=Max Output Tokens,default=4096"`
	Temperature       float64 `json:"temperature" validate:"gte=0,lte=2" jsonschema:"title=Temperature,description=Sampling temperature; 0 is deterministic,default=0"`
	TrimLimit         int     `json:"trimLimit" validate:"gte=2,lte=100000" jsonschema:"title=Trim Limit,description=Largest instruction listing sent untrimmed,default=120"`
	TimeoutSeconds    int     `json:"timeoutSeconds" validate:"gte=1,lte=3600" jsonschema:"title=Request Timeout,description=Per-request provider timeout in seconds,default=120"`
	MaxAttempts       int     `json:"maxAttempts" validate:"gte=1,lte=20" jsonschema:"title=Max Attempts,description=Attempts per provider call on transport failure,default=5"`
	BaseDelayMs       int     `json:"baseDelayMs" validate:"gte=0,lte=600000" jsonschema:"title=Base Delay,description=First backoff delay in milliseconds; doubles per attempt,default=1000"`
	RequestsPerMinute int     `json:"requestsPerMinute" validate:"gte=0" jsonschema:"title=Requests Per Minute,description=Outbound request pacing; 0 disables it,default=0"`

	Cache CacheConfig `json:"cache"`
}

// CacheConfig controls the explanation cache.
type CacheConfig struct {
	Persist bool `json:"persist" jsonschema:"title=Persist,description=Write explanations to <storageDir>/<fileId>/explanations,default=true"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:          "google",
		Model:             "gemini-2.0-flash-lite",
		StorageDir:        filepath.Join("storage", "artifacts"),
		Listen:            "127.0.0.1:8000",
		LogLevel:          "info",
		MaxOutputTokens:   4096,
		Temperature:       0,
		TrimLimit:         120,
		TimeoutSeconds:    120,
		MaxAttempts:       5,
		BaseDelayMs:       1000,
		RequestsPerMinute: 0,
		Cache: CacheConfig{
			Persist: true,
		},
	}
}

// Timeout returns the provider request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseDelay returns the first retry backoff delay.
func (c Config) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("listenaddr", validateListenAddr); err != nil {
		panic(err)
	}
	return v
}

// validateListenAddr accepts host:port with a numeric port; the host may be empty.
func validateListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ConfigDir returns the platform-appropriate config directory for asmexplain.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "asmexplain"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "asmexplain"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "asmexplain"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "asmexplain"), nil
	default:
		return filepath.Join(home, ".config", "asmexplain"), nil
	}
}

// ConfigPath returns the full path to the config file. ASMEXPLAIN_CONFIG
// overrides the default location.
func ConfigPath() (string, error) {
	if p := os.Getenv("ASMEXPLAIN_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile returns the defaults overlaid with the config file. Fields absent
// from the file keep their defaults. A missing file yields Default().
func LoadFile() (Config, error) {
	cfg := Default()
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the config file. The API key is never written.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DotEnvFile is the .env file read by Load. Variables it defines never
// override the real environment.
var DotEnvFile = ".env"

// Load builds the effective config by merging:
// defaults <- file <- .env <- env <- overrides, then validates it.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	if err := loadDotEnv(DotEnvFile); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// envBindings maps environment variables to config keys. Earlier entries
// win when several variables for the same key are set.
var envBindings = []struct {
	env string
	key string
}{
	{"ASMEXPLAIN_PROVIDER", "provider"},
	{"LLM_PROVIDER", "provider"},
	{"ASMEXPLAIN_MODEL", "model"},
	{"GOOGLE_MODEL", "model"},
	{"ASMEXPLAIN_STORAGE_DIR", "storageDir"},
	{"ASMEXPLAIN_LISTEN", "listen"},
	{"ASMEXPLAIN_CORS_ORIGINS", "corsOrigins"},
	{"ASMEXPLAIN_LOG_LEVEL", "logLevel"},
	{"ASMEXPLAIN_MAX_OUTPUT_TOKENS", "maxOutputTokens"},
	{"ASMEXPLAIN_TEMPERATURE", "temperature"},
	{"ASMEXPLAIN_TRIM_LIMIT", "trimLimit"},
	{"ASMEXPLAIN_TIMEOUT_SECONDS", "timeoutSeconds"},
	{"ASMEXPLAIN_MAX_ATTEMPTS", "maxAttempts"},
	{"ASMEXPLAIN_BASE_DELAY_MS", "baseDelayMs"},
	{"ASMEXPLAIN_REQUESTS_PER_MINUTE", "requestsPerMinute"},
	{"ASMEXPLAIN_CACHE_PERSIST", "cache.persist"},
}

// apiKeyEnv lists the credential variables in priority order.
var apiKeyEnv = []string{"ASMEXPLAIN_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"}

func mergeEnv(cfg *Config) error {
	seen := make(map[string]bool)
	for _, b := range envBindings {
		if seen[b.key] {
			continue
		}
		v := os.Getenv(b.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, b.key, v); err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
		seen[b.key] = true
	}
	for _, name := range apiKeyEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			cfg.APIKey = v
			break
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for _, key := range Keys() {
		v, ok := overrides[key]
		if !ok || v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the settable config keys.
func Keys() []string {
	return []string{
		"provider", "model", "storageDir", "listen", "corsOrigins", "logLevel",
		"maxOutputTokens", "temperature", "trimLimit", "timeoutSeconds",
		"maxAttempts", "baseDelayMs", "requestsPerMinute", "cache.persist",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	atoi := func(dst *int) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	switch key {
	case "provider":
		cfg.Provider = strings.ToLower(strings.TrimSpace(value))
	case "model":
		cfg.Model = strings.TrimSpace(value)
	case "storageDir":
		cfg.StorageDir = value
	case "listen":
		cfg.Listen = value
	case "corsOrigins":
		cfg.CORSOrigins = splitList(value)
	case "logLevel":
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(value))
	case "maxOutputTokens":
		return atoi(&cfg.MaxOutputTokens)
	case "temperature":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("temperature must be a number: %w", err)
		}
		cfg.Temperature = f
	case "trimLimit":
		return atoi(&cfg.TrimLimit)
	case "timeoutSeconds":
		return atoi(&cfg.TimeoutSeconds)
	case "maxAttempts":
		return atoi(&cfg.MaxAttempts)
	case "baseDelayMs":
		return atoi(&cfg.BaseDelayMs)
	case "requestsPerMinute":
		return atoi(&cfg.RequestsPerMinute)
	case "cache.persist":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("cache.persist must be a boolean: %w", err)
		}
		cfg.Cache.Persist = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
