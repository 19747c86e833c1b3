package mysql

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/internal/review/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
)

// ReportRepositoryImpl 社区举报仓储的 GORM 实现
type ReportRepositoryImpl struct {
	db *gorm.DB
}

// NewReportRepository 创建仓储
func NewReportRepository(db *gorm.DB) *ReportRepositoryImpl {
	return &ReportRepositoryImpl{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ReportRepositoryImpl) WithTx(tx *gorm.DB) domain.ReportRepository {
	return &ReportRepositoryImpl{db: tx}
}

// Create 保存举报
func (r *ReportRepositoryImpl) Create(ctx context.Context, report *domain.CommunityReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		logger.Error(ctx, "Failed to create community report", "listing_id", report.ListingID, "error", err)
		return err
	}
	return nil
}

// GetByReportID 按业务 ID 查询
func (r *ReportRepositoryImpl) GetByReportID(ctx context.Context, reportID string) (*domain.CommunityReport, error) {
	var report domain.CommunityReport
	err := r.db.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// ListByListingID 商品名下的所有举报，按时间升序
func (r *ReportRepositoryImpl) ListByListingID(ctx context.Context, listingID string) ([]*domain.CommunityReport, error) {
	var reports []*domain.CommunityReport
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Transition 条件单次转移：WHERE 锁定 pending，重复裁决不命中
func (r *ReportRepositoryImpl) Transition(ctx context.Context, reportID string, to domain.ReportStatus, moderatorID string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.CommunityReport{}).
		Where("report_id = ? AND status = ?", reportID, domain.ReportStatusPending).
		Updates(map[string]interface{}{
			"status":       to,
			"validated_by": moderatorID,
			"validated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RewardRepositoryImpl 奖励流水仓储的 GORM 实现
type RewardRepositoryImpl struct {
	db *gorm.DB
}

// NewRewardRepository 创建仓储
func NewRewardRepository(db *gorm.DB) *RewardRepositoryImpl {
	return &RewardRepositoryImpl{db: db}
}

// Grant 发放奖励。report_id 唯一索引冲突视为已发放，返回 (false, nil)。
func (r *RewardRepositoryImpl) Grant(ctx context.Context, grant *domain.RewardGrant) (bool, error) {
	err := r.db.WithContext(ctx).Create(grant).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		logger.Error(ctx, "Failed to grant reward", "report_id", grant.ReportID, "error", err)
		return false, err
	}
	return true, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
