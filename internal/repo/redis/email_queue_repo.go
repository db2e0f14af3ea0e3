package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultEmailQueueKey = "queue:email"

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("email queue is empty")

type EmailQueueRepo struct {
	client *goredis.Client
	key    string
}

func NewEmailQueueRepo(client *goredis.Client, key string) *EmailQueueRepo {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultEmailQueueKey
	}
	return &EmailQueueRepo{client: client, key: key}
}

func (r *EmailQueueRepo) Push(ctx context.Context, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.LPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("push email: %w", err)
	}
	return nil
}

// Pop blocks for up to timeout waiting for the oldest queued payload.
func (r *EmailQueueRepo) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	values, err := r.client.BRPop(ctx, timeout, r.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop email: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply length %d", len(values))
	}
	return []byte(values[1]), nil
}

func (r *EmailQueueRepo) Len(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	return r.client.LLen(ctx, r.key).Result()
}
