package chat

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/llm"
	"github.com/agrodrone/backend/internal/metrics"
	"github.com/agrodrone/backend/pkg/logger"
)

// Model is a text-completion backend.
type Model interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Tokenizer bounds prompt size.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, limit int) string
}

// ModelProvider hands out a ready model and its tokenizer.
type ModelProvider interface {
	Get(ctx context.Context) (Model, Tokenizer, error)
}

// Builder constructs a fresh model handle.
type Builder func(ctx context.Context) (Model, Tokenizer, error)

type providerEntry struct {
	model     Model
	tokenizer Tokenizer
	expires   time.Time
}

// CachedProvider memoizes the built handle for ttl. Concurrent misses may build
// more than once; the last fully built entry wins. Failed builds are not cached.
type CachedProvider struct {
	build Builder
	ttl   time.Duration
	now   func() time.Time
	entry atomic.Pointer[providerEntry]
}

func NewCachedProvider(build Builder, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{build: build, ttl: ttl, now: time.Now}
}

func (p *CachedProvider) Get(ctx context.Context) (Model, Tokenizer, error) {
	if e := p.entry.Load(); e != nil && p.now().Before(e.expires) {
		return e.model, e.tokenizer, nil
	}

	start := time.Now()
	model, tok, err := p.build(ctx)
	if err != nil {
		metrics.ModelLoads.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	p.entry.Store(&providerEntry{model: model, tokenizer: tok, expires: p.now().Add(p.ttl)})
	metrics.ModelLoads.WithLabelValues("success").Inc()
	logger.Info("Model handle built", zap.Duration("took", time.Since(start)), zap.Duration("ttl", p.ttl))

	return model, tok, nil
}

// Invalidate drops the cached handle so the next Get rebuilds it.
func (p *CachedProvider) Invalidate() {
	p.entry.Store(nil)
}
