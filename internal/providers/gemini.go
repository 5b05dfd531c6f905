package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/metrics"
	"github.com/dshills/asmexplain/internal/redact"
)

// Gemini implements Generator for Google's Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	policy  Policy
	sleep   SleepFunc
	limiter *rate.Limiter
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewGemini creates a Gemini client. The API key is required.
func NewGemini(s Settings) (*Gemini, error) {
	key := strings.TrimSpace(s.APIKey)
	if key == "" {
		return nil, &ConfigurationError{
			Reason: "Google API key is not set",
			Hint:   credentialEnvVarsHint,
		}
	}
	g := &Gemini{
		apiKey:  key,
		model:   strings.TrimPrefix(s.Model, "models/"),
		baseURL: strings.TrimRight(s.BaseURL, "/"),
		client:  s.HTTPClient,
		policy:  s.Retry,
		sleep:   s.Sleep,
		logger:  logging.OrDiscard(s.Logger),
		metrics: s.Metrics,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.client == nil {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		g.client = &http.Client{Timeout: timeout}
	}
	if g.policy.MaxAttempts <= 0 {
		g.policy = DefaultPolicy()
	}
	if g.sleep == nil {
		g.sleep = Sleep
	}
	if s.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.RequestsPerMinute)), 1)
	}
	return g, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Model returns the model the client targets.
func (g *Gemini) Model() string { return g.model }

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
	// Temperature is always sent, including zero.
	Temperature float64 `json:"temperature"`
}

// CombinePrompt renders the system and user prompts as the single text block
// the model receives.
func CombinePrompt(system, user string) string {
	return "[system]\n" + system + "\n\n[user]\n" + user + "\n"
}

func (g *Gemini) endpoint(method string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s",
		g.baseURL, url.PathEscape(g.model), method, url.QueryEscape(g.apiKey))
}

// Generate sends one generateContent request. Transport failures are retried
// with exponential backoff; any completed HTTP exchange is final.
func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	body := generateRequest{
		Contents: []requestContent{{
			Parts: []requestPart{{Text: CombinePrompt(req.SystemPrompt, req.UserPrompt)}},
		}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     req.Temperature,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := g.endpoint("generateContent")
	g.logger.Debug("gemini request", "url", redact.URL(endpoint), "payload", truncateDump(string(payload)))

	start := time.Now()
	defer func() { g.metrics.LLMDuration(time.Since(start)) }()

	type exchange struct {
		status int
		body   []byte
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		g.metrics.LLMRetry()
		return g.sleep(ctx, d)
	}
	ex, err := Retry(ctx, g.policy, sleep, func(attempt int) (exchange, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return exchange{}, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return exchange{}, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := g.client.Do(httpReq)
		if err != nil {
			g.metrics.LLMAttempt("transport_error")
			err = g.scrub(err)
			g.logger.Warn("gemini call failed", "attempt", attempt, "err", err)
			return exchange{}, Retryable(fmt.Errorf("sending request: %w", err))
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			g.metrics.LLMAttempt("transport_error")
			g.logger.Warn("gemini response read failed", "attempt", attempt, "err", err)
			return exchange{}, Retryable(fmt.Errorf("reading response: %w", err))
		}
		g.metrics.LLMAttempt("completed")
		return exchange{status: httpResp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			return Response{}, &LLMError{
				Kind:    KindTransportExhausted,
				Message: fmt.Sprintf("failed to connect to Gemini API after %d attempts", exhausted.Attempts),
				Err:     g.scrub(exhausted.Err),
			}
		}
		return Response{}, g.scrub(err)
	}

	g.logger.Debug("gemini response", "status", ex.status, "body", redact.Value(truncateDump(string(ex.body)), g.apiKey))

	resp, err := parseResponse(ex.status, ex.body)
	if err != nil {
		var le *LLMError
		if errors.As(err, &le) && le.Body != "" {
			le.Body = redact.Value(le.Body, g.apiKey)
		}
		return Response{}, err
	}
	return resp, nil
}

// scrub strips the API key from the URL carried by a *url.Error.
func (g *Gemini) scrub(err error) error {
	if err == nil {
		return nil
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redact.URL(ue.URL)
	}
	return err
}

// ModelInfo describes one model returned by ListModels.
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	InputTokenLimit            int      `json:"inputTokenLimit"`
	OutputTokenLimit           int      `json:"outputTokenLimit"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ListModels returns the models visible to the API key. It is not retried.
func (g *Gemini) ListModels(ctx context.Context) ([]ModelInfo, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", g.baseURL, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", g.scrub(err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result struct {
		Models []ModelInfo     `json:"models"`
		Error  json.RawMessage `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &LLMError{
			Kind:    KindUnparseableResponse,
			Message: "LLM returned non-JSON response",
			Status:  httpResp.StatusCode,
			Body:    redact.Value(truncateDump(string(body)), g.apiKey),
		}
	}
	env := geminiEnvelope{Error: result.Error}
	if pe, ok := env.providerError(); ok {
		return nil, classifyProviderError(pe, httpResp.StatusCode)
	}
	return result.Models, nil
}
