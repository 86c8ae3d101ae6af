// Package chat answers farmer questions from the latest field analysis,
// falling back to a time-boxed generative model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/metrics"
	"github.com/agrodrone/backend/pkg/logger"
	"github.com/agrodrone/backend/pkg/utils"
)

// Dispatch paths, reported on every Reply.
const (
	PathQuick     = "quick"
	PathCache     = "cache"
	PathGenerated = "generated"
	PathTimeout   = "timeout"
	PathFallback  = "fallback"
)

const timeoutPrefix = "I'm still working on a detailed answer. Meanwhile, here is some quick advice: "

// ReplyCache stores generated replies.
type ReplyCache interface {
	GetReply(ctx context.Context, key string) (string, bool, error)
	SetReply(ctx context.Context, key, reply string) error
}

type Options struct {
	Timeout          time.Duration
	MaxResponseChars int
	PromptTokenLimit int
	Temperature      float32
	TopP             float32
	MaxTokens        int
	// Cache is optional.
	Cache ReplyCache
	// Pick chooses an index in [0, n) for the error fallback. Defaults to math/rand.
	Pick func(n int) int
}

type Reply struct {
	Response    string `json:"response"`
	ContextUsed bool   `json:"context_used"`
	UserRole    string `json:"user_role"`
	Path        string `json:"-"`
}

type Dispatcher struct {
	source   ContextSource
	provider ModelProvider
	opts     Options
}

func NewDispatcher(source ContextSource, provider ModelProvider, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.MaxResponseChars <= 0 {
		opts.MaxResponseChars = 600
	}
	if opts.PromptTokenLimit <= 0 {
		opts.PromptTokenLimit = 512
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	return &Dispatcher{source: source, provider: provider, opts: opts}
}

// Chat never fails: every backend problem degrades to a templated reply.
func (d *Dispatcher) Chat(ctx context.Context, message, role string) Reply {
	c := BuildContext(ctx, d.source, role)
	reply := Reply{ContextUsed: c.HasData, UserRole: c.UserRole}

	normalized := normalize(message)
	if text, ok := quickReply(normalized, c); ok {
		return d.finish(reply, text, PathQuick)
	}

	key := cacheKey(normalized, c)
	if text, ok := d.cached(ctx, key); ok {
		return d.finish(reply, text, PathCache)
	}

	text, err := d.generate(ctx, message, c)
	switch {
	case err == nil:
		d.store(ctx, key, text)
		return d.finish(reply, text, PathGenerated)
	case errors.Is(err, ErrGenerationTimeout):
		logger.Warn("Generation timed out", zap.Duration("timeout", d.opts.Timeout))
		return d.finish(reply, timeoutPrefix+adviceFor(normalized, c), PathTimeout)
	default:
		logger.Error("Generation failed", zap.Error(err))
		return d.finish(reply, d.fallback(message, c.UserRole), PathFallback)
	}
}

func (d *Dispatcher) finish(r Reply, text, path string) Reply {
	metrics.ChatReplies.WithLabelValues(path).Inc()
	r.Response = text
	r.Path = path
	return r
}

func cacheKey(normalized string, c Context) string {
	return "chat:reply:" + utils.HashParts(normalized, c.UserRole, strconv.FormatInt(c.SessionID, 10))
}

func (d *Dispatcher) cached(ctx context.Context, key string) (string, bool) {
	if d.opts.Cache == nil {
		return "", false
	}
	text, ok, err := d.opts.Cache.GetReply(ctx, key)
	if err != nil {
		logger.Warn("Reply cache lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("reply").Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues("reply").Inc()
	return text, true
}

func (d *Dispatcher) store(ctx context.Context, key, text string) {
	if d.opts.Cache == nil {
		return
	}
	if err := d.opts.Cache.SetReply(ctx, key, text); err != nil {
		logger.Warn("Failed to cache reply", zap.Error(err))
	}
}

var fallbacks = []func(topic, role string) string{
	func(topic, role string) string {
		return fmt.Sprintf("Sorry, I couldn't put together a full answer about %q right now. As a %s, the recommendation cards from your latest analysis are a good place to start.", topic, role)
	},
	func(topic, role string) string {
		return fmt.Sprintf("I'm having trouble answering %q at the moment. Please try again shortly; your %s dashboard still shows the key field metrics.", topic, role)
	},
	func(topic, role string) string {
		return fmt.Sprintf("The assistant is briefly unavailable for %q. Ask about canopy, stress, yield or fertilizer for an instant answer tailored to a %s.", topic, role)
	},
}

const maxEchoRunes = 80

func (d *Dispatcher) fallback(message, role string) string {
	topic := message
	if utf8.RuneCountInString(topic) > maxEchoRunes {
		topic = string([]rune(topic)[:maxEchoRunes]) + "..."
	}
	return fallbacks[d.opts.Pick(len(fallbacks))](topic, role)
}
