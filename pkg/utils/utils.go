// Package utils 提供重试/退避等通用工具
package utils

import (
	"context"
	"time"
)

// Retry 以固定退避重试 fn，context 取消时立即返回
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
