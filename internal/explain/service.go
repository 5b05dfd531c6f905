package explain

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/cache"
	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/metrics"
	"github.com/dshills/asmexplain/internal/providers"
)

// Loader resolves disassembly artifacts.
type Loader interface {
	Load(fileID, address string) (*artifact.Artifact, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Artifacts Loader
	Cache     *cache.Cache
	// Generator may be nil when the provider is not configured. Cached
	// explanations are still served; misses fail with GeneratorErr.
	Generator    providers.Generator
	GeneratorErr error

	TrimLimit       int
	MaxOutputTokens int
	Temperature     float64

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Service explains functions, caching the results.
type Service struct {
	artifacts    Loader
	cache        *cache.Cache
	generator    providers.Generator
	generatorErr error
	trimLimit    int
	maxTokens    int
	temperature  float64
	logger       *log.Logger
	metrics      *metrics.Metrics

	flight singleflight.Group
}

// New creates a Service. Artifacts and Cache are required.
func New(d Deps) *Service {
	s := &Service{
		artifacts:    d.Artifacts,
		cache:        d.Cache,
		generator:    d.Generator,
		generatorErr: d.GeneratorErr,
		trimLimit:    d.TrimLimit,
		maxTokens:    d.MaxOutputTokens,
		temperature:  d.Temperature,
		logger:       logging.OrDiscard(d.Logger),
		metrics:      d.Metrics,
	}
	if s.trimLimit <= 0 {
		s.trimLimit = DefaultTrimLimit
	}
	if s.maxTokens <= 0 {
		s.maxTokens = providers.DefaultMaxTokens
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Options{Logger: d.Logger, Metrics: d.Metrics})
	}
	if s.generator == nil && s.generatorErr == nil {
		s.generatorErr = &providers.ConfigurationError{
			Reason: "no LLM provider configured",
			Hint:   "Set LLM_PROVIDER=google and GOOGLE_API_KEY.",
		}
	}
	return s
}

// Cache returns the service's explanation cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Explain returns the explanation for the function at address in fileID.
//
// The artifact is loaded and validated before the cache is consulted, so an
// explanation is never served for disassembly that no longer exists.
// Provider failures are returned unchanged and nothing is cached.
func (s *Service) Explain(ctx context.Context, fileID, address string) (Record, error) {
	rec, err := s.explain(ctx, fileID, address)
	if err != nil {
		s.metrics.Failed(ErrorLabel(err))
		return Record{}, err
	}
	s.metrics.Served(rec.Source)
	return rec, nil
}

func (s *Service) explain(ctx context.Context, fileID, address string) (Record, error) {
	if err := artifact.ValidateID("file id", fileID); err != nil {
		return Record{}, err
	}
	if err := artifact.ValidateID("address", address); err != nil {
		return Record{}, err
	}

	art, err := s.artifacts.Load(fileID, address)
	if err != nil {
		return Record{}, err
	}

	key := cache.Key{FileID: fileID, Address: address}
	if text, source, ok := s.cache.Lookup(key); ok {
		s.logger.Debug("explanation cache hit", "key", key.String(), "source", source)
		return Record{FileID: fileID, Address: address, Explanation: text, Source: source}, nil
	}

	// The flight runs detached so an abandoned caller still fills the cache.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key.String(), func() (any, error) {
		if text, source, ok := s.cache.Lookup(key); ok {
			return Record{FileID: fileID, Address: address, Explanation: text, Source: source}, nil
		}
		return s.generate(detached, key, art)
	})

	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Record{}, res.Err
		}
		return res.Val.(Record), nil
	}
}

func (s *Service) generate(ctx context.Context, key cache.Key, art *artifact.Artifact) (Record, error) {
	if s.generator == nil {
		return Record{}, s.generatorErr
	}

	trimmed := Trim(art, s.trimLimit)
	if trimmed.Trimmed && !art.Trimmed {
		s.metrics.Trimmed()
	}
	prompt := BuildPrompt(key.FileID, key.Address, trimmed)

	start := time.Now()
	resp, err := s.generator.Generate(ctx, providers.Request{
		SystemPrompt: SystemPrompt(),
		UserPrompt:   prompt,
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	if err != nil {
		s.logger.Error("explanation failed", "key", key.String(), "err", err)
		return Record{}, err
	}
	s.logger.Info("explanation generated",
		"key", key.String(),
		"ops", art.Len(),
		"trimmed", trimmed.Trimmed,
		"tokens", resp.TokensUsed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	s.cache.Put(key, resp.Content)
	return Record{
		FileID:      key.FileID,
		Address:     key.Address,
		Explanation: resp.Content,
		Source:      metrics.SourceLLM,
	}, nil
}

// ErrorLabel returns a short, stable label for err, used as a metric label
// and in logs.
func ErrorLabel(err error) string {
	var (
		nf *artifact.NotFoundError
		fe *artifact.FormatError
		ce *providers.ConfigurationError
		le *providers.LLMError
	)
	switch {
	case errors.Is(err, artifact.ErrInvalidID):
		return "invalid_id"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &fe):
		return "format"
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &le):
		return string(le.Kind)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
