package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/marketplace/internal/session/domain"
	"github.com/wyfcoding/marketplace/pkg/cache"
)

// SessionRepositoryImpl 基于 Redis 的会话存储。
// 手机号锁用 SETNX 占用，保证同一手机号至多一个未结会话。
type SessionRepositoryImpl struct {
	cache *cache.RedisCache
}

// NewSessionRepository 创建会话存储
func NewSessionRepository(c *cache.RedisCache) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{cache: c}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:id:%s", sessionID)
}

func phoneKey(phone string) string {
	return fmt.Sprintf("session:phone:%s", phone)
}

// Create 创建会话。手机号锁与会话体同一 TTL，锁失败即存在未结会话。
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	locked, err := r.cache.Client().SetNX(ctx, phoneKey(session.Phone), session.SessionID, ttl).Result()
	if err != nil {
		return err
	}
	if !locked {
		return domain.ErrSessionExists
	}
	if err := r.cache.SetJSON(ctx, sessionKey(session.SessionID), session, ttl); err != nil {
		// 回滚手机号锁，避免孤儿锁挡住重试
		_ = r.cache.Delete(ctx, phoneKey(session.Phone))
		return err
	}
	return nil
}

// Get 读取会话，过期或不存在返回 ErrSessionNotFound
func (r *SessionRepositoryImpl) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	found, err := r.cache.GetJSON(ctx, sessionKey(sessionID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// Update 回写会话并为会话体与手机号锁续期
func (r *SessionRepositoryImpl) Update(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if err := r.cache.SetJSON(ctx, sessionKey(session.SessionID), session, ttl); err != nil {
		return err
	}
	return r.cache.Client().Expire(ctx, phoneKey(session.Phone), ttl).Err()
}

// Delete 删除会话并释放手机号锁
func (r *SessionRepositoryImpl) Delete(ctx context.Context, session *domain.Session) error {
	return r.cache.Delete(ctx, sessionKey(session.SessionID), phoneKey(session.Phone))
}
