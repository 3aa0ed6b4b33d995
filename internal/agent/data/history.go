package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	"github.com/lk2023060901/agent-gateway/internal/pkg/redis"
)

// DefaultHistoryLength caps how many messages one thread keeps.
const DefaultHistoryLength = 50

// RedisHistory keeps thread history in a capped redis list per thread.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
	maxLen int64
}

var _ biz.HistoryStore = (*RedisHistory)(nil)

func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, ttl: ttl, maxLen: DefaultHistoryLength}
}

func (h *RedisHistory) key(threadID string) string {
	return h.client.Key("history", threadID)
}

func (h *RedisHistory) Load(ctx context.Context, threadID string) ([]types.ChatMessage, error) {
	vals, err := h.client.LRange(ctx, h.key(threadID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", threadID, err)
	}

	messages := make([]types.ChatMessage, 0, len(vals))
	for _, v := range vals {
		var m types.ChatMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", threadID, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (h *RedisHistory) Append(ctx context.Context, threadID string, messages ...types.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, len(messages))
	for i, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode history %s: %w", threadID, err)
		}
		values[i] = string(b)
	}

	if err := h.client.AppendCapped(ctx, h.key(threadID), h.maxLen, h.ttl, values...); err != nil {
		return fmt.Errorf("append history %s: %w", threadID, err)
	}
	return nil
}

// MemoryHistory keeps thread history in process. Used when no redis is
// configured; entries expire after ttl of inactivity.
type MemoryHistory struct {
	mu      sync.Mutex
	threads map[string]*memoryThread
	ttl     time.Duration
	maxLen  int
	now     func() time.Time
}

type memoryThread struct {
	messages []types.ChatMessage
	touched  time.Time
}

var _ biz.HistoryStore = (*MemoryHistory)(nil)

func NewMemoryHistory(ttl time.Duration) *MemoryHistory {
	return &MemoryHistory{
		threads: make(map[string]*memoryThread),
		ttl:     ttl,
		maxLen:  DefaultHistoryLength,
		now:     time.Now,
	}
}

func (h *MemoryHistory) Load(_ context.Context, threadID string) ([]types.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.evictLocked()
	t, ok := h.threads[threadID]
	if !ok {
		return nil, nil
	}
	return append([]types.ChatMessage(nil), t.messages...), nil
}

func (h *MemoryHistory) Append(_ context.Context, threadID string, messages ...types.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.evictLocked()
	t, ok := h.threads[threadID]
	if !ok {
		t = &memoryThread{}
		h.threads[threadID] = t
	}
	t.messages = append(t.messages, messages...)
	if len(t.messages) > h.maxLen {
		t.messages = append([]types.ChatMessage(nil), t.messages[len(t.messages)-h.maxLen:]...)
	}
	t.touched = h.now()
	return nil
}

func (h *MemoryHistory) evictLocked() {
	if h.ttl <= 0 {
		return
	}
	cutoff := h.now().Add(-h.ttl)
	for id, t := range h.threads {
		if t.touched.Before(cutoff) {
			delete(h.threads, id)
		}
	}
}
