package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier keeps each audience's notifications in a capped Redis list so several
// API replicas share them.
type RedisNotifier struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisNotifier(rdb redis.UniversalClient, ttl time.Duration) *RedisNotifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisNotifier{rdb: rdb, ttl: ttl}
}

var _ Notifier = (*RedisNotifier)(nil)

func key(audience string) string { return "graphilearn:notifications:" + audience }

func (r *RedisNotifier) Push(ctx context.Context, audience string, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	k := key(audience)
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, k, b)
	pipe.LTrim(ctx, k, -maxPending, -1)
	pipe.Expire(ctx, k, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

func (r *RedisNotifier) Drain(ctx context.Context, audience string) ([]Notification, error) {
	k := key(audience)
	pipe := r.rdb.TxPipeline()
	rng := pipe.LRange(ctx, k, 0, -1)
	pipe.Del(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("drain notifications: %w", err)
	}

	out := make([]Notification, 0, len(rng.Val()))
	for _, raw := range rng.Val() {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
