package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/redis/go-redis/v9"
)

const historyKeyPrefix = "aigateway:history:"

var _ MessageStore = (*RedisStore)(nil)

// RedisStore implements MessageStore on a Redis list per user.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds connection settings for NewRedis.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: expected PONG, got %s", pong)
	}
	return &RedisStore{client: client}, nil
}

func historyKey(userID string) string {
	return historyKeyPrefix + userID
}

// Ping verifies Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Append pushes all messages inside one MULTI/EXEC block.
func (r *RedisStore) Append(ctx context.Context, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := validate(msgs); err != nil {
		return err
	}

	encoded := make(map[string][]any)
	order := make([]string, 0, 1)
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", m.ID, err)
		}
		key := historyKey(m.UserID)
		if _, ok := encoded[key]; !ok {
			order = append(order, key)
		}
		encoded[key] = append(encoded[key], data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range order {
			pipe.RPush(ctx, key, encoded[key]...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return nil
}

// List reads the user's list and applies the filter client-side.
func (r *RedisStore) List(ctx context.Context, userID string, filter Filter) ([]domain.ChatMessage, error) {
	vals, err := r.client.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	msgs := make([]domain.ChatMessage, 0, len(vals))
	for _, v := range vals {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if matches(m, filter) {
			msgs = append(msgs, m)
		}
	}
	if limit := filter.limit(); len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
