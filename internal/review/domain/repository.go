package domain

import (
	"context"

	"gorm.io/gorm"
)

// QueueRepository 审核队列仓储
type QueueRepository interface {
	Create(ctx context.Context, entry *QueueEntry) error
	GetByEntryID(ctx context.Context, entryID string) (*QueueEntry, error)
	GetOpenByListingID(ctx context.Context, listingID string) (*QueueEntry, error)
	// ListOpen 按优先级降序、同级按入队时间升序
	ListOpen(ctx context.Context, limit int) ([]*QueueEntry, error)
	CountOpen(ctx context.Context) (int64, error)
	// Resolve 条件更新：仅开放项可关闭，返回是否命中
	Resolve(ctx context.Context, entryID, moderatorID string) (bool, error)
	// EscalatePriority 条件升级：仅开放且未达 high 的项生效，返回是否命中
	EscalatePriority(ctx context.Context, listingID string) (bool, error)

	WithTx(tx *gorm.DB) QueueRepository
}

// ReportRepository 社区举报仓储
type ReportRepository interface {
	Create(ctx context.Context, report *CommunityReport) error
	GetByReportID(ctx context.Context, reportID string) (*CommunityReport, error)
	ListByListingID(ctx context.Context, listingID string) ([]*CommunityReport, error)
	// Transition 条件单次转移 pending -> status，返回是否命中
	Transition(ctx context.Context, reportID string, to ReportStatus, moderatorID string) (bool, error)

	WithTx(tx *gorm.DB) ReportRepository
}

// RewardRepository 奖励流水仓储
type RewardRepository interface {
	// Grant 发放奖励；report_id 冲突时返回 (false, nil) 表示已发放过
	Grant(ctx context.Context, grant *RewardGrant) (bool, error)
}

// ReportWindowCounter 滑动窗口内同一商品的待处理举报计数（原子自增）
type ReportWindowCounter interface {
	Increment(ctx context.Context, listingID string) (int, error)
}
