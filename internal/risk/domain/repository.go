package domain

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountHistoryRepository 账号历史读侧仓储
type AccountHistoryRepository interface {
	GetProfile(ctx context.Context, accountID string) (*AccountProfile, error)
	// CountConfirmedReports 该账号名下商品被实锤举报的次数
	CountConfirmedReports(ctx context.Context, accountID string) (int, error)
	// RecentUploadTimes 窗口内的上传时间，按时间升序
	RecentUploadTimes(ctx context.Context, accountID string, since time.Time) ([]time.Time, error)
	RecentLocations(ctx context.Context, accountID string, limit int) ([]LocationPoint, error)
	// CountAccountsOnNetwork 同一网络指纹下的账号数
	CountAccountsOnNetwork(ctx context.Context, fingerprint string) (int, error)
}

// VelocityCounter 当日上传计数（读）
type VelocityCounter interface {
	UploadsToday(ctx context.Context, accountID string) (int, error)
}

// ImageHashIndex 已有商品图片内容 hash 的精确匹配索引
type ImageHashIndex interface {
	Exists(ctx context.Context, hash string) (bool, error)
}

// ImageStore 对象存储中图片内容的 hash 计算
type ImageStore interface {
	ContentHash(ctx context.Context, objectKey string) (string, error)
}
