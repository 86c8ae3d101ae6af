package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/agrodrone/backend/internal/llm"
	"github.com/agrodrone/backend/internal/metrics"
)

const systemPrompt = "You are an agricultural assistant helping a %s interpret drone crop analysis. " +
	"Answer in at most three short, practical sentences."

const minQuestionTokens = 16

// buildPrompt keeps the field summary intact and trims the question so the
// whole prompt fits within limit tokens.
func buildPrompt(message string, c Context, tok Tokenizer, limit int) llm.CompletionRequest {
	summary := c.Summary()
	question := message
	if tok != nil && limit > 0 {
		budget := limit - tok.Count(summary) - tok.Count("Field data: Question: Answer:")
		budget = max(budget, minQuestionTokens)
		question = tok.Truncate(message, budget)
	}
	return llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPrompt, c.UserRole),
		UserPrompt:   fmt.Sprintf("Field data: %s\nQuestion: %s\nAnswer:", summary, question),
	}
}

type generation struct {
	text string
	err  error
}

// generate races the model against the deadline. A late result lands in the
// buffered channel and is dropped.
func (d *Dispatcher) generate(ctx context.Context, message string, c Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("%w: panic: %v", ErrGenerationBackend, r)}
			}
		}()
		text, err := d.complete(ctx, message, c)
		done <- generation{text: text, err: err}
	}()

	timer := time.NewTimer(d.opts.Timeout)
	defer timer.Stop()

	select {
	case g := <-done:
		outcome := "success"
		if g.err != nil {
			outcome = "error"
		}
		metrics.GenerationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		return g.text, g.err
	case <-timer.C:
		metrics.GenerationDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		return "", ErrGenerationTimeout
	case <-ctx.Done():
		metrics.GenerationDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
		return "", ErrGenerationTimeout
	}
}

func (d *Dispatcher) complete(ctx context.Context, message string, c Context) (string, error) {
	model, tok, err := d.provider.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: model provider: %v", ErrGenerationBackend, err)
	}

	req := buildPrompt(message, c, tok, d.opts.PromptTokenLimit)
	req.Temperature = d.opts.Temperature
	req.TopP = d.opts.TopP
	req.MaxTokens = d.opts.MaxTokens

	resp, err := model.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationBackend, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: nil completion", ErrGenerationBackend)
	}
	metrics.LLMTokensUsed.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

	text := postprocess(resp.Content, d.opts.MaxResponseChars)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationBackend)
	}
	return text, nil
}
