package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/pkg/logger"
)

const replyPattern = "chat:reply:*"

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedReply struct {
	Response string    `json:"response"`
	CachedAt time.Time `json:"cached_at"`
}

func NewClient(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("reply_ttl", ttl))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetReply(ctx context.Context, key, reply string) error {
	data, err := json.Marshal(cachedReply{Response: reply, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set reply cache: %w", err)
	}

	logger.Debug("Reply cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetReply(ctx context.Context, key string) (string, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get reply cache: %w", err)
	}

	var r cachedReply
	if err := json.Unmarshal(data, &r); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	logger.Debug("Reply cache hit", zap.String("key", key))
	return r.Response, true, nil
}

// InvalidateReplies drops every cached reply. Called when a new session closes
// so answers never outlive the analysis they were based on.
func (c *Client) InvalidateReplies(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, replyPattern, 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Reply cache invalidated", zap.Int("deleted", deleted))
	return nil
}
