package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/pkg/circuitbreaker"
	"github.com/agrodrone/backend/pkg/config"
	"github.com/agrodrone/backend/pkg/logger"
	"github.com/agrodrone/backend/pkg/retry"
)

// OpenAIClient talks to the OpenAI chat completions API or any server that
// speaks it (BaseURL).
type OpenAIClient struct {
	client      *openai.Client
	defaults    defaults
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger.Info("LLM client initialized",
		zap.String("provider", "openai"),
		zap.String("model", cfg.Model),
	)

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		defaults:    defaultsFrom(cfg),
		cb:          newBreaker("llm-openai"),
		retryConfig: newRetryConfig(openAIRetryable),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Close() error { return nil }

// openAIRetryable skips retries for client errors other than rate limiting.
func openAIRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= http.StatusInternalServerError ||
			apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= http.StatusInternalServerError ||
			reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrEmptyCompletion)
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.defaults.timeout)
	defer cancel()

	req = c.defaults.apply(req)

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.defaults.model,
					Messages:    messages,
					Temperature: req.Temperature,
					TopP:        req.TopP,
					MaxTokens:   req.MaxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return ErrEmptyCompletion
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
