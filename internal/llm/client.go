// Package llm wraps the text-completion backends used by the chat assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrodrone/backend/pkg/circuitbreaker"
	"github.com/agrodrone/backend/pkg/config"
	"github.com/agrodrone/backend/pkg/logger"
	"github.com/agrodrone/backend/pkg/retry"
)

var ErrEmptyCompletion = errors.New("completion returned no content")

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	TopP         float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer is implemented by every backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
	Close() error
}

// defaults fills zero request fields from the configured sampling parameters.
type defaults struct {
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	timeout     time.Duration
}

func (d defaults) apply(req CompletionRequest) CompletionRequest {
	if req.Temperature == 0 {
		req.Temperature = d.temperature
	}
	if req.TopP == 0 {
		req.TopP = d.topP
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = d.maxTokens
	}
	return req
}

func defaultsFrom(cfg config.LLMConfig) defaults {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return defaults{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
	}
}

func newBreaker(name string) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.Named("llm.breaker"),
	})
}

func newRetryConfig(retryable func(error) bool) retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      retryable,
		Logger:         logger.Named("llm.retry"),
	}
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
