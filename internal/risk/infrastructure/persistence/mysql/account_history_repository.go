package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/internal/risk/domain"
)

// AccountHistoryRepositoryImpl 账号历史读侧仓储的 GORM 实现
type AccountHistoryRepositoryImpl struct {
	db *gorm.DB
}

// NewAccountHistoryRepository 创建仓储
func NewAccountHistoryRepository(db *gorm.DB) *AccountHistoryRepositoryImpl {
	return &AccountHistoryRepositoryImpl{db: db}
}

// GetProfile 查询账号画像
func (r *AccountHistoryRepositoryImpl) GetProfile(ctx context.Context, accountID string) (*domain.AccountProfile, error) {
	var acc Account
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &domain.AccountProfile{
		AccountID:            acc.AccountID,
		RegisteredAt:         acc.RegisteredAt,
		PaymentHistoryMonths: acc.PaymentHistoryMonths,
		NetworkFingerprint:   acc.NetworkFingerprint,
	}, nil
}

// CountConfirmedReports 该账号名下商品被实锤举报的次数
func (r *AccountHistoryRepositoryImpl) CountConfirmedReports(ctx context.Context, accountID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("community_reports").
		Joins("JOIN listings ON listings.listing_id = community_reports.listing_id").
		Where("listings.submitter_id = ? AND community_reports.status = ?", accountID, "CONFIRMED").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// RecentUploadTimes 窗口内的上传时间，按时间升序
func (r *AccountHistoryRepositoryImpl) RecentUploadTimes(ctx context.Context, accountID string, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Table("listings").
		Where("submitter_id = ? AND created_at >= ?", accountID, since).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

// RecentLocations 最近的历史定位点
func (r *AccountHistoryRepositoryImpl) RecentLocations(ctx context.Context, accountID string, limit int) ([]domain.LocationPoint, error) {
	var rows []AccountLocation
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	points := make([]domain.LocationPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, domain.LocationPoint{Lat: row.Lat, Lng: row.Lng, RecordedAt: row.RecordedAt})
	}
	return points, nil
}

// CountAccountsOnNetwork 同一网络指纹下的账号数
func (r *AccountHistoryRepositoryImpl) CountAccountsOnNetwork(ctx context.Context, fingerprint string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("network_fingerprint = ?", fingerprint).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ImageHashIndexImpl 基于 listing_images 表的精确 hash 索引
type ImageHashIndexImpl struct {
	db *gorm.DB
}

// NewImageHashIndex 创建图片 hash 索引
func NewImageHashIndex(db *gorm.DB) *ImageHashIndexImpl {
	return &ImageHashIndexImpl{db: db}
}

// Exists 是否已存在相同内容 hash 的图片
func (r *ImageHashIndexImpl) Exists(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("listing_images").
		Where("hash = ?", hash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
