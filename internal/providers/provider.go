package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/asmexplain/internal/metrics"
)

// Defaults used when Settings leaves a field zero.
const (
	DefaultModel          = "gemini-2.0-flash-lite"
	DefaultBaseURL        = "https://generativelanguage.googleapis.com"
	DefaultMaxTokens      = 4096
	DefaultTimeout        = 120 * time.Second
	DefaultProviderName   = "google"
	credentialEnvVarsHint = "Set GOOGLE_API_KEY (or GEMINI_API_KEY) in the environment or in a .env file."
)

// Request contains the data sent to the LLM.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response contains the model's reply.
type Response struct {
	Content      string
	FinishReason string
	TokensUsed   int
	// Truncated is set when the model stopped at its output limit.
	Truncated bool
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Settings configures a provider client.
type Settings struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
	Retry   Policy
	// RequestsPerMinute paces outbound requests. Zero disables pacing.
	RequestsPerMinute int
	HTTPClient        *http.Client
	Sleep             SleepFunc
	Logger            *log.Logger
	Metrics           *metrics.Metrics
}

// SupportedProvider reports whether name selects the Gemini client.
func SupportedProvider(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google", "gemini":
		return true
	}
	return false
}

// New validates s and returns the client for its provider.
func New(s Settings) (Generator, error) {
	if s.Provider == "" {
		s.Provider = DefaultProviderName
	}
	if !SupportedProvider(s.Provider) {
		return nil, &ConfigurationError{
			Reason: "unsupported LLM provider " + strings.TrimSpace(s.Provider) + "; only google is supported",
			Hint:   "Set LLM_PROVIDER=google.",
		}
	}
	g, err := NewGemini(s)
	if err != nil {
		return nil, err
	}
	return g, nil
}
