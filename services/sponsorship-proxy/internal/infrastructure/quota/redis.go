package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/shared/redis"
)

// RedisQuota allows at most limit sponsorships per sender in each fixed window
type RedisQuota struct {
	client *redis.Redis
	limit  int
	window time.Duration
}

func NewRedisQuota(client *redis.Redis, limit int, window time.Duration) *RedisQuota {
	return &RedisQuota{client: client, limit: limit, window: window}
}

func (q *RedisQuota) Allow(ctx context.Context, sender string) (bool, error) {
	key := redis.SponsorRateKey(sender)

	pipe := q.client.GetClient().TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, q.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count sponsorship for %s: %w", sender, err)
	}

	return incr.Val() <= int64(q.limit), nil
}
