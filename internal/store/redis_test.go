package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/google/uuid"
)

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewRedis(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisAppendAndList(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()
	t.Cleanup(func() { s.client.Del(context.Background(), historyKey(userID)) })

	for i, project := range []string{"p1", "p2", "p1"} {
		u, a := exchange(userID, uuid.NewString(), time.Now().Add(time.Duration(i)*time.Second),
			domain.MessageContext{ProjectID: project})
		if err := s.Append(ctx, u, a); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := s.List(ctx, userID, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(all))
	}

	p1, err := s.List(ctx, userID, Filter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(p1) != 4 {
		t.Fatalf("expected 4 messages for p1, got %d", len(p1))
	}

	last, err := s.List(ctx, userID, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(last) != 2 || last[0].Role != domain.RoleUser || last[1].Role != domain.RoleAI {
		t.Fatalf("unexpected tail: %+v", last)
	}
}

func TestRedisRejectsIncompleteMessage(t *testing.T) {
	s := newTestRedis(t)
	if err := s.Append(context.Background(), domain.ChatMessage{ID: "x"}); err != ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}
