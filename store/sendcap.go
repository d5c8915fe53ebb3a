package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SendCap enforces a per-tenant daily delivery ceiling on a shared redis
// counter, so multiple dispatch workers respect one budget. A nil SendCap
// means no cap.
type SendCap struct {
	client *redis.Client
	limit  int
}

func NewSendCap(client *redis.Client, limit int) *SendCap {
	return &SendCap{client: client, limit: limit}
}

// Allow consumes one send from today's budget for the tenant. When the
// budget is exhausted the item stays pending for a later pass, so Allow
// never needs to refund.
func (c *SendCap) Allow(ctx context.Context, tenantID uint) (bool, error) {
	if c == nil || c.client == nil || c.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("sendcap:%d:%s", tenantID, time.Now().UTC().Format("20060102"))
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open on redis errors
		return true, err
	}
	if count == 1 {
		c.client.Expire(ctx, key, 48*time.Hour)
	}
	return count <= int64(c.limit), nil
}
