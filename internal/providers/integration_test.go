//go:build integration

package providers

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func liveGemini(t *testing.T) *Gemini {
	t.Helper()
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		t.Skip("skipping: GOOGLE_API_KEY not set")
	}
	g, err := NewGemini(Settings{APIKey: key, Model: os.Getenv("GOOGLE_MODEL")})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func TestIntegration_Generate(t *testing.T) {
	g := liveGemini(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := g.Generate(ctx, Request{
		SystemPrompt: "You are a helpful assistant that explains assembly code.",
		UserPrompt:   "Explain in one sentence:\n0x100: mov eax, ebx\n0x102: ret",
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		t.Error("empty explanation")
	}
	t.Logf("finish=%s tokens=%d\n%s", resp.FinishReason, resp.TokensUsed, resp.Content)
}

func TestIntegration_ListModels(t *testing.T) {
	g := liveGemini(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := g.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) == 0 {
		t.Error("no models returned")
	}
}
