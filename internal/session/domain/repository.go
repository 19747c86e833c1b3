package domain

import (
	"context"
	"time"
)

// SessionRepository 会话存储。TTL 即会话超时，过期即视为会话不存在。
type SessionRepository interface {
	// Create 创建会话并占用手机号锁；该手机号已有未结会话时返回 ErrSessionExists
	Create(ctx context.Context, session *Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Update 回写会话并续期
	Update(ctx context.Context, session *Session, ttl time.Duration) error
	// Delete 删除会话并释放手机号锁
	Delete(ctx context.Context, session *Session) error
}
