package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
)

// ListingRepositoryImpl 基于 GORM 的商品仓储实现
type ListingRepositoryImpl struct {
	db *gorm.DB
}

// NewListingRepository 创建商品仓储
func NewListingRepository(db *gorm.DB) *ListingRepositoryImpl {
	return &ListingRepositoryImpl{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ListingRepositoryImpl) WithTx(tx *gorm.DB) domain.ListingRepository {
	return &ListingRepositoryImpl{db: tx}
}

// Save 保存商品与图片记录
func (r *ListingRepositoryImpl) Save(ctx context.Context, listing *domain.Listing, images []domain.ListingImage) error {
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		logger.Error(ctx, "Failed to save listing", "listing_id", listing.ListingID, "error", err)
		return err
	}
	if len(images) > 0 {
		if err := r.db.WithContext(ctx).Create(&images).Error; err != nil {
			logger.Error(ctx, "Failed to save listing images", "listing_id", listing.ListingID, "error", err)
			return err
		}
	}
	return nil
}

// GetByListingID 按业务 ID 查询
func (r *ListingRepositoryImpl) GetByListingID(ctx context.Context, listingID string) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// UpdateStatus 条件状态更新，WHERE 带上旧状态避免并发覆盖
func (r *ListingRepositoryImpl) UpdateStatus(ctx context.Context, listingID string, from, to domain.ListingStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("listing_id = ? AND status = ?", listingID, from).
		Update("status", to)
	if res.Error != nil {
		logger.Error(ctx, "Failed to update listing status",
			"listing_id", listingID, "from", from, "to", to, "error", res.Error)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListBySubmitter 按提交者查询最近的商品
func (r *ListingRepositoryImpl) ListBySubmitter(ctx context.Context, submitterID string, limit int) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	err := r.db.WithContext(ctx).
		Where("submitter_id = ?", submitterID).
		Order("created_at DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}
