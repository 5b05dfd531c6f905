package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TokenLimitMessage is returned as the explanation when the model stopped at
// its output limit without producing any text.
const TokenLimitMessage = "Model reached maximum token limit and returned no text. Try reducing the input size."

// maxDumpChars caps how much of a response body is echoed into errors and logs.
const maxDumpChars = 3000

type geminiPart struct {
	Text *string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiCandidate struct {
	Content      json.RawMessage `json:"content,omitempty"`
	FinishReason string          `json:"finishReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiEnvelope struct {
	Candidates    []geminiCandidate `json:"candidates,omitempty"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
	// Error is either an object or, from some proxies, a bare string.
	Error json.RawMessage `json:"error,omitempty"`
}

// decodeEnvelope parses a generateContent body. Error responses are
// sometimes wrapped in a one-element array; the first element is used.
func decodeEnvelope(body []byte) (*geminiEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []geminiEnvelope
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return &geminiEnvelope{}, nil
		}
		return &list[0], nil
	}
	var env geminiEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// providerError extracts the error object, if any.
func (e *geminiEnvelope) providerError() (*geminiErrorBody, bool) {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	var body geminiErrorBody
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &body.Message); err != nil {
			body.Message = string(raw)
		}
		return &body, true
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = string(raw)
	}
	if body.Message == "" {
		body.Message = "Unknown error"
	}
	return &body, true
}

// classifyProviderError maps a provider error object to an LLMError.
func classifyProviderError(pe *geminiErrorBody, status int) *LLMError {
	switch {
	case strings.Contains(pe.Message, "API_KEY_INVALID") || strings.Contains(pe.Message, "API key not valid"):
		return &LLMError{Kind: KindInvalidCredential, Status: status,
			Message: "invalid Google API key"}
	case pe.Status == "PERMISSION_DENIED":
		return &LLMError{Kind: KindPermissionDenied, Status: status,
			Message: "permission denied by the Gemini API"}
	case strings.Contains(pe.Message, "RESOURCE_EXHAUSTED") || strings.Contains(pe.Message, "Quota exceeded") ||
		pe.Status == "RESOURCE_EXHAUSTED":
		return &LLMError{Kind: KindQuotaExceeded, Status: status,
			Message: "Gemini API quota exceeded"}
	default:
		return &LLMError{Kind: KindProviderError, Status: status,
			Message: "Gemini API error: " + pe.Message}
	}
}

type contentShape int

const (
	shapeAbsent contentShape = iota
	shapeObject
	shapeList
	shapeUnrecognized
)

func classifyContent(raw json.RawMessage) contentShape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return shapeAbsent
	}
	switch raw[0] {
	case '{':
		return shapeObject
	case '[':
		return shapeList
	default:
		return shapeUnrecognized
	}
}

type resultKind int

const (
	resultUnrecognized resultKind = iota
	resultText
	resultTokenLimit
)

type parsedResult struct {
	kind         resultKind
	text         string
	finishReason string
}

// firstText returns the concatenated text of parts. Empty text counts as none.
func firstText(parts []geminiPart) (string, bool) {
	var sb strings.Builder
	found := false
	for _, p := range parts {
		if p.Text == nil {
			continue
		}
		sb.WriteString(*p.Text)
		found = true
	}
	if !found || sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// interpret turns the first candidate into a result.
func (e *geminiEnvelope) interpret() parsedResult {
	if len(e.Candidates) == 0 {
		return parsedResult{kind: resultUnrecognized}
	}
	cand := e.Candidates[0]
	res := parsedResult{kind: resultUnrecognized, finishReason: cand.FinishReason}

	switch classifyContent(cand.Content) {
	case shapeObject:
		var c geminiContent
		if err := json.Unmarshal(cand.Content, &c); err != nil {
			break
		}
		if text, ok := firstText(c.Parts); ok {
			res.kind, res.text = resultText, text
			return res
		}
		if c.Role != "" && len(c.Parts) == 0 {
			res.kind = resultTokenLimit
		}
	case shapeList:
		var items []geminiContent
		if err := json.Unmarshal(cand.Content, &items); err != nil {
			break
		}
		for _, item := range items {
			if text, ok := firstText(item.Parts); ok {
				res.kind, res.text = resultText, text
				return res
			}
		}
	case shapeAbsent, shapeUnrecognized:
	}

	if cand.FinishReason == "MAX_TOKENS" {
		res.kind = resultTokenLimit
	}
	return res
}

// truncateDump caps s to maxDumpChars runes.
func truncateDump(s string) string {
	r := []rune(s)
	if len(r) <= maxDumpChars {
		return s
	}
	return string(r[:maxDumpChars])
}

// parseResponse converts an HTTP body into a Response or a classified error.
func parseResponse(status int, body []byte) (Response, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return Response{}, &LLMError{
			Kind:    KindUnparseableResponse,
			Message: "LLM returned non-JSON response",
			Status:  status,
			Body:    truncateDump(string(body)),
		}
	}
	if pe, ok := env.providerError(); ok {
		return Response{}, classifyProviderError(pe, status)
	}

	res := env.interpret()
	resp := Response{FinishReason: res.finishReason}
	if env.UsageMetadata != nil {
		resp.TokensUsed = env.UsageMetadata.TotalTokenCount
	}
	switch res.kind {
	case resultText:
		resp.Content = res.text
		resp.Truncated = res.finishReason == "MAX_TOKENS"
		return resp, nil
	case resultTokenLimit:
		resp.Content = TokenLimitMessage
		resp.Truncated = true
		return resp, nil
	case resultUnrecognized:
		return Response{}, &LLMError{
			Kind:    KindUnparseableResponse,
			Message: "unrecognized Gemini response",
			Status:  status,
			Body:    truncateDump(string(body)),
		}
	default:
		panic(fmt.Sprintf("providers: unhandled result kind %d", res.kind))
	}
}
