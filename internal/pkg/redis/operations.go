package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LRange 获取列表范围内的元素
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := c.master.LRange(ctx, key, start, stop).Result()
	if err != nil {
		c.logger.Error("redis lrange failed",
			zap.String("key", key),
			zap.Int64("start", start),
			zap.Int64("stop", stop),
			zap.Error(err),
		)
	}
	return vals, err
}

// AppendCapped pushes values to the tail of a list, keeps only the last
// maxLen entries and refreshes the ttl, in one MULTI/EXEC.
func (c *Client) AppendCapped(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...any) error {
	_, err := c.master.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if maxLen > 0 {
			pipe.LTrim(ctx, key, -maxLen, -1)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("redis append failed",
			zap.String("key", key),
			zap.Int64("max_len", maxLen),
			zap.Error(err),
		)
	}
	return err
}
