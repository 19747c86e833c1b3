package redis

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketplace/internal/review/domain"
	"github.com/wyfcoding/marketplace/pkg/cache"
)

// ReportWindowCounterImpl 基于 Redis 的 24 小时举报窗口计数器
type ReportWindowCounterImpl struct {
	cache *cache.RedisCache
}

// NewReportWindowCounter 创建计数器
func NewReportWindowCounter(c *cache.RedisCache) *ReportWindowCounterImpl {
	return &ReportWindowCounterImpl{cache: c}
}

func (c *ReportWindowCounterImpl) key(listingID string) string {
	return fmt.Sprintf("review:reports:%s", listingID)
}

// Increment 原子递增并返回窗口内计数，首次写入时设置过期。
// 计数按提交累加，已裁决的举报不回扣，宁可多升级也不漏升级。
func (c *ReportWindowCounterImpl) Increment(ctx context.Context, listingID string) (int, error) {
	key := c.key(listingID)
	client := c.cache.Client()

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, domain.EscalationWindow).Err(); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}
