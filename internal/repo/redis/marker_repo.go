package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// MarkerRepo records one-shot run markers so a periodic job acts once per
// period across restarts and replicas.
type MarkerRepo struct {
	client *goredis.Client
	prefix string
}

func NewMarkerRepo(client *goredis.Client, prefix string) *MarkerRepo {
	return &MarkerRepo{client: client, prefix: strings.TrimSpace(prefix)}
}

// Claim sets the marker if absent and reports whether this call set it.
func (r *MarkerRepo) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim marker %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a marker so the next run can claim it again.
func (r *MarkerRepo) Release(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.client.Del(ctx, r.prefix+key).Err()
}
