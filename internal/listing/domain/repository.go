package domain

import (
	"context"

	"gorm.io/gorm"
)

// ListingRepository 商品仓储接口
type ListingRepository interface {
	Save(ctx context.Context, listing *Listing, images []ListingImage) error
	GetByListingID(ctx context.Context, listingID string) (*Listing, error)
	// UpdateStatus 条件更新：仅当当前状态为 from 时生效，返回是否命中
	UpdateStatus(ctx context.Context, listingID string, from, to ListingStatus) (bool, error)
	ListBySubmitter(ctx context.Context, submitterID string, limit int) ([]*Listing, error)

	// WithTx 返回绑定到事务的仓储
	WithTx(tx *gorm.DB) ListingRepository
}
