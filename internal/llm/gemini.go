package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/agrodrone/backend/pkg/circuitbreaker"
	"github.com/agrodrone/backend/pkg/config"
	"github.com/agrodrone/backend/pkg/logger"
	"github.com/agrodrone/backend/pkg/retry"
)

// GeminiClient generates completions with Google's Gemini API.
type GeminiClient struct {
	client      *genai.Client
	defaults    defaults
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is empty")
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	logger.Info("LLM client initialized",
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Model),
	)

	return &GeminiClient{
		client:   cl,
		defaults: defaultsFrom(cfg),
		cb:       newBreaker("llm-gemini"),
		retryConfig: newRetryConfig(func(err error) bool {
			return !errors.Is(err, ErrEmptyCompletion)
		}),
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Close() error { return c.client.Close() }

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.defaults.timeout)
	defer cancel()

	req = c.defaults.apply(req)

	m := c.client.GenerativeModel(c.defaults.model)
	m.SetTemperature(req.Temperature)
	m.SetTopP(req.TopP)
	m.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := m.GenerateContent(ctx, genai.Text(req.UserPrompt))
			if err != nil {
				return fmt.Errorf("failed to generate content: %w", err)
			}

			txt := firstText(resp)
			if txt == "" {
				return ErrEmptyCompletion
			}

			result = &CompletionResponse{Content: txt}
			if u := resp.UsageMetadata; u != nil {
				result.Usage = Usage{
					PromptTokens:     int(u.PromptTokenCount),
					CompletionTokens: int(u.CandidatesTokenCount),
					TotalTokens:      int(u.TotalTokenCount),
				}
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", result.Usage.PromptTokens),
				zap.Int("completion_tokens", result.Usage.CompletionTokens),
			)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
