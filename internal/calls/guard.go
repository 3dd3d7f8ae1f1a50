package calls

import (
	"context"
	"time"

	"chat-backend/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisGuard allows at most one ongoing call per conversation, across every
// API process. The slot carries a TTL so a crashed process cannot wedge a
// conversation; a long call outliving the TTL simply stops being guarded.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func guardKey(conversationID string) string {
	return "calls:conversation:" + conversationID
}

func (g *RedisGuard) Acquire(ctx context.Context, conversationID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, guardKey(conversationID), 1, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, conversationID string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, guardKey(conversationID))
}
