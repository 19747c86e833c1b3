package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/internal/review/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
)

// QueueRepositoryImpl 审核队列仓储的 GORM 实现
type QueueRepositoryImpl struct {
	db *gorm.DB
}

// NewQueueRepository 创建仓储
func NewQueueRepository(db *gorm.DB) *QueueRepositoryImpl {
	return &QueueRepositoryImpl{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *QueueRepositoryImpl) WithTx(tx *gorm.DB) domain.QueueRepository {
	return &QueueRepositoryImpl{db: tx}
}

// Create 创建队列项，同一商品已有开放项时拒绝
func (r *QueueRepositoryImpl) Create(ctx context.Context, entry *domain.QueueEntry) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("listing_id = ? AND status = ?", entry.ListingID, domain.EntryStatusOpen).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrDuplicateOpenEntry
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Error(ctx, "Failed to create queue entry", "listing_id", entry.ListingID, "error", err)
		return err
	}
	return nil
}

// GetByEntryID 按业务 ID 查询
func (r *QueueRepositoryImpl) GetByEntryID(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := r.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetOpenByListingID 查询商品的开放队列项
func (r *QueueRepositoryImpl) GetOpenByListingID(ctx context.Context, listingID string) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status = ?", listingID, domain.EntryStatusOpen).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListOpen 开放队列，优先级降序、同级按入队时间升序
func (r *QueueRepositoryImpl) ListOpen(ctx context.Context, limit int) ([]*domain.QueueEntry, error) {
	var entries []*domain.QueueEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.EntryStatusOpen).
		Order("FIELD(priority, 'HIGH', 'MEDIUM', 'LOW')").
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountOpen 开放队列深度
func (r *QueueRepositoryImpl) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("status = ?", domain.EntryStatusOpen).
		Count(&count).Error
	return count, err
}

// Resolve 条件关闭：WHERE 带上 open 状态，并发关闭只有一个命中
func (r *QueueRepositoryImpl) Resolve(ctx context.Context, entryID, moderatorID string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("entry_id = ? AND status = ?", entryID, domain.EntryStatusOpen).
		Updates(map[string]interface{}{
			"status":      domain.EntryStatusResolved,
			"resolved_by": moderatorID,
			"resolved_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// EscalatePriority 条件升级到 high，已是 high 或已关闭则不命中
func (r *QueueRepositoryImpl) EscalatePriority(ctx context.Context, listingID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("listing_id = ? AND status = ? AND priority <> ?",
			listingID, domain.EntryStatusOpen, domain.PriorityHigh).
		Update("priority", domain.PriorityHigh)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
