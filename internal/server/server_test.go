package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/cache"
	"github.com/dshills/asmexplain/internal/explain"
	"github.com/dshills/asmexplain/internal/metrics"
	"github.com/dshills/asmexplain/internal/providers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	calls atomic.Int32
	reply string
	err   error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, providers.Request) (providers.Response, error) {
	g.calls.Add(1)
	if g.err != nil {
		return providers.Response{}, g.err
	}
	return providers.Response{Content: g.reply}, nil
}

type testEnv struct {
	root   string
	gen    *stubGenerator
	server *Server
}

func newTestEnv(t *testing.T, gen *stubGenerator, genErr error) *testEnv {
	t.Helper()
	root := t.TempDir()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := artifact.NewStore(root)
	deps := explain.Deps{
		Artifacts:    store,
		Cache:        cache.New(cache.Options{Dir: root, Persist: true, Metrics: m}),
		GeneratorErr: genErr,
		Metrics:      m,
	}
	if gen != nil {
		deps.Generator = gen
	}
	srv := New(Options{
		Explainer: explain.New(deps),
		Index:     store,
		Gatherer:  reg,
	})
	return &testEnv{root: root, gen: gen, server: srv}
}

func (e *testEnv) writeArtifact(t *testing.T, fileID, address, body string) {
	t.Helper()
	dir := filepath.Join(e.root, fileID, "disassembly")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, address+".json"), []byte(body), 0o644))
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const f1Artifact = `{"ops":[{"offset":256,"disasm":"mov eax, ebx"},{"offset":258,"disasm":"ret"}]}`

func TestExplain_EndToEnd(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "Moves ebx into eax."}, nil)
	env.writeArtifact(t, "f1", "0x100", f1Artifact)

	w := env.get(t, "/explain/f1/0x100")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "f1", resp["fileId"])
	assert.Equal(t, "0x100", resp["address"])
	assert.Equal(t, "Moves ebx into eax.", resp["explanation"])
	assert.NotContains(t, resp, "Source")

	data, err := os.ReadFile(filepath.Join(env.root, "f1", "explanations", "0x100.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Moves ebx into eax.", string(data))

	// Second request is served from the cache.
	w = env.get(t, "/explain/f1/0x100")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), env.gen.calls.Load())
}

func TestExplain_NotFound(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "x"}, nil)
	w := env.get(t, "/explain/f1/0x999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "not found")
	assert.Equal(t, int32(0), env.gen.calls.Load())
}

func TestExplain_InvalidID(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "x"}, nil)
	w := env.get(t, "/explain/f1/a:b")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeError(t, w).Hint)
}

func TestExplain_Malformed(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "x"}, nil)
	env.writeArtifact(t, "f1", "0x100", `{"instructions":[]}`)
	w := env.get(t, "/explain/f1/0x100")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "unexpected format")
	assert.Equal(t, int32(0), env.gen.calls.Load())
}

func TestExplain_ConfigurationErrorHasHint(t *testing.T) {
	env := newTestEnv(t, nil, &providers.ConfigurationError{
		Reason: "Google API key is not set",
		Hint:   "Set GOOGLE_API_KEY.",
	})
	env.writeArtifact(t, "f1", "0x100", f1Artifact)

	w := env.get(t, "/explain/f1/0x100")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Contains(t, body.Detail, "API key is not set")
	assert.Equal(t, "Set GOOGLE_API_KEY.", body.Hint)
}

func TestExplain_LLMError(t *testing.T) {
	gen := &stubGenerator{err: &providers.LLMError{Kind: providers.KindQuotaExceeded, Message: "Gemini API quota exceeded", Status: 429}}
	env := newTestEnv(t, gen, nil)
	env.writeArtifact(t, "f1", "0x100", f1Artifact)

	w := env.get(t, "/explain/f1/0x100")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Contains(t, body.Detail, "quota exceeded")
	assert.NotEmpty(t, body.Hint)

	_, err := os.Stat(filepath.Join(env.root, "f1", "explanations", "0x100.txt"))
	assert.True(t, os.IsNotExist(err), "failed explanation must not be persisted")
}

func TestFunctions(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "x"}, nil)
	store := artifact.NewStore(env.root)
	require.NoError(t, store.SaveIndex("f1", []artifact.Function{
		{Name: "main", Address: "0x401000", Size: 42, Instructions: 12},
	}))

	w := env.get(t, "/functions/f1")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		FileID    string              `json:"fileId"`
		Functions []artifact.Function `json:"functions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "f1", resp.FileID)
	require.Len(t, resp.Functions, 1)
	assert.Equal(t, "main", resp.Functions[0].Name)

	w = env.get(t, "/functions/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	w := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "x"}, nil)
	env.writeArtifact(t, "f1", "0x100", f1Artifact)
	env.get(t, "/explain/f1/0x100")

	w := env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `asmexplain_explanations_total{source="llm"} 1`)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/health")
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/health")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/explain/f1/0x100", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	srv := New(Options{CORSOrigins: []string{"http://app.example"}})

	allowed := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://app.example")
	srv.Router().ServeHTTP(allowed, req)
	assert.Equal(t, "http://app.example", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	srv.Router().ServeHTTP(denied, req)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.server.Router().GET("/boom", func(*gin.Context) { panic("boom") })

	w := env.get(t, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeError(t, w).Detail)
}

func TestNoRoute(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	w := env.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{artifact.ValidateID("address", "a/b"), http.StatusBadRequest},
		{&artifact.NotFoundError{FileID: "f", Address: "a"}, http.StatusNotFound},
		{&artifact.FormatError{Reason: "x"}, http.StatusInternalServerError},
		{&providers.ConfigurationError{Reason: "x"}, http.StatusInternalServerError},
		{&providers.LLMError{Kind: providers.KindProviderError}, http.StatusInternalServerError},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := StatusFor(tt.err)
		assert.Equal(t, tt.want, got, "StatusFor(%v)", tt.err)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(url)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
	_, err = http.Get(url)
	assert.Error(t, err)
}
