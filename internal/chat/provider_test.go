package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrodrone/backend/internal/llm"
)

func countingBuilder(builds *atomic.Int32) Builder {
	return func(context.Context) (Model, Tokenizer, error) {
		builds.Add(1)
		return &fakeModel{content: "ok"}, llm.NewTokenizer(), nil
	}
}

func TestCachedProviderReusesUntilExpiry(t *testing.T) {
	var builds atomic.Int32
	p := NewCachedProvider(countingBuilder(&builds), time.Hour)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	m1, _, err := p.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m2, _, _ := p.Get(context.Background())
	if m1 != m2 || builds.Load() != 1 {
		t.Fatalf("expected cached handle, builds=%d", builds.Load())
	}

	now = now.Add(time.Hour + time.Second)
	m3, _, _ := p.Get(context.Background())
	if m3 == m1 || builds.Load() != 2 {
		t.Fatalf("expected rebuild after ttl, builds=%d", builds.Load())
	}
}

func TestCachedProviderDoesNotPublishFailures(t *testing.T) {
	var attempts atomic.Int32
	p := NewCachedProvider(func(context.Context) (Model, Tokenizer, error) {
		if attempts.Add(1) == 1 {
			return nil, nil, errors.New("weights missing")
		}
		return &fakeModel{}, llm.NewTokenizer(), nil
	}, time.Hour)

	if _, _, err := p.Get(context.Background()); err == nil {
		t.Fatal("expected first build to fail")
	}
	if p.entry.Load() != nil {
		t.Fatal("failed build was published")
	}
	m, tok, err := p.Get(context.Background())
	if err != nil || m == nil || tok == nil {
		t.Fatalf("second build: %v", err)
	}
}

func TestCachedProviderConcurrentGet(t *testing.T) {
	var builds atomic.Int32
	p := NewCachedProvider(countingBuilder(&builds), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, tok, err := p.Get(context.Background())
			if err != nil || m == nil || tok == nil {
				t.Errorf("incomplete handle: %v %v %v", m, tok, err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() < 1 {
		t.Fatal("expected at least one build")
	}
	// Once published, further calls hit the cache.
	before := builds.Load()
	p.Get(context.Background())
	if builds.Load() != before {
		t.Fatal("published entry was not reused")
	}
}

func TestCachedProviderInvalidate(t *testing.T) {
	var builds atomic.Int32
	p := NewCachedProvider(countingBuilder(&builds), time.Hour)

	p.Get(context.Background())
	p.Invalidate()
	p.Get(context.Background())
	if builds.Load() != 2 {
		t.Fatalf("expected rebuild after invalidate, builds=%d", builds.Load())
	}
}
