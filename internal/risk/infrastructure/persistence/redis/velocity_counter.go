package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VelocityCounterImpl 当日上传计数的 Redis 实现。
// 写入方为准入流水线（每次成功落库后 Record），key 按天滚动过期。
type VelocityCounterImpl struct {
	client *redis.Client
	prefix string
}

// NewVelocityCounter 创建计数器
func NewVelocityCounter(client *redis.Client) *VelocityCounterImpl {
	return &VelocityCounterImpl{client: client, prefix: "risk:velocity:"}
}

func (c *VelocityCounterImpl) key(accountID string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, accountID, day.UTC().Format("2006-01-02"))
}

// UploadsToday 当日上传次数
func (c *VelocityCounterImpl) UploadsToday(ctx context.Context, accountID string) (int, error) {
	count, err := c.client.Get(ctx, c.key(accountID, time.Now())).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Record 上传成功后自增，首次写入时设置 48h 过期兜底
func (c *VelocityCounterImpl) Record(ctx context.Context, accountID string) error {
	key := c.key(accountID, time.Now())
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	_ = incr
	return nil
}
