// 包 人工审核领域模型：审核队列、社区举报与举报奖励
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
)

var (
	ErrQueueEntryNotFound = errors.New("queue entry not found")
	ErrEntryResolved      = errors.New("queue entry already resolved")
	ErrDuplicateOpenEntry = errors.New("listing already has an open queue entry")
	ErrReportNotFound     = errors.New("report not found")
	ErrReportResolved     = errors.New("report already resolved")
)

// Priority 队列优先级
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// EntryStatus 队列项状态
type EntryStatus string

const (
	EntryStatusOpen     EntryStatus = "OPEN"
	EntryStatusResolved EntryStatus = "RESOLVED"
)

// ReportStatus 举报状态，恰好转移一次
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "PENDING"
	ReportStatusConfirmed ReportStatus = "CONFIRMED"
	ReportStatusRejected  ReportStatus = "REJECTED"
)

// 举报升级阈值：24 小时窗口内第 3 条待处理举报强制置为高优先级
const (
	EscalationThreshold = 3
	EscalationWindow    = 24 * time.Hour
)

// RewardAmount 实锤举报的固定奖励额，与任何因素不成比例
var RewardAmount = decimal.NewFromInt(50)

// LowConfidenceThreshold 置信度低于该值直接判高优先级
const LowConfidenceThreshold = 0.5

// MediumIssueCount 问题数超过该值判中优先级
const MediumIssueCount = 2

// ComputePriority 入队时的优先级计算
func ComputePriority(verdict moderationdomain.ModerationVerdict) Priority {
	if verdict.HasFraudMarker() || verdict.Confidence < LowConfidenceThreshold {
		return PriorityHigh
	}
	if len(verdict.FlaggedIssues) > MediumIssueCount {
		return PriorityMedium
	}
	return PriorityLow
}

// QueueEntry 审核队列项。开放项始终指向 pending 商品，一个商品至多一个开放项。
type QueueEntry struct {
	gorm.Model
	EntryID            string      `gorm:"column:entry_id;type:varchar(36);uniqueIndex;not null" json:"entry_id"`
	ListingID          string      `gorm:"column:listing_id;type:varchar(36);index;not null" json:"listing_id"`
	RiskSnapshot       string      `gorm:"column:risk_snapshot;type:text" json:"risk_snapshot"`
	ModerationSnapshot string      `gorm:"column:moderation_snapshot;type:text" json:"moderation_snapshot"`
	Priority           Priority    `gorm:"column:priority;type:varchar(10);index;not null" json:"priority"`
	Status             EntryStatus `gorm:"column:status;type:varchar(10);index;not null" json:"status"`
	ResolvedBy         string      `gorm:"column:resolved_by;type:varchar(36)" json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time  `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

// TableName 指定表名
func (QueueEntry) TableName() string { return "review_queue_entries" }

// CommunityReport 社区举报
type CommunityReport struct {
	gorm.Model
	ReportID    string       `gorm:"column:report_id;type:varchar(36);uniqueIndex;not null" json:"report_id"`
	ListingID   string       `gorm:"column:listing_id;type:varchar(36);index;not null" json:"listing_id"`
	ReporterID  string       `gorm:"column:reporter_id;type:varchar(36);index;not null" json:"reporter_id"`
	ReasonCode  string       `gorm:"column:reason_code;type:varchar(50);not null" json:"reason_code"`
	Description string       `gorm:"column:description;type:text" json:"description"`
	Evidence    string       `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	Status      ReportStatus `gorm:"column:status;type:varchar(10);index;not null" json:"status"`
	ValidatedBy string       `gorm:"column:validated_by;type:varchar(36)" json:"validated_by,omitempty"`
	ValidatedAt *time.Time   `gorm:"column:validated_at" json:"validated_at,omitempty"`
}

// TableName 指定表名
func (CommunityReport) TableName() string { return "community_reports" }

// RewardGrant 举报奖励流水。report_id 唯一索引保证奖励恰好发放一次。
type RewardGrant struct {
	gorm.Model
	ReportID   string          `gorm:"column:report_id;type:varchar(36);uniqueIndex;not null" json:"report_id"`
	ReporterID string          `gorm:"column:reporter_id;type:varchar(36);index;not null" json:"reporter_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
}

// TableName 指定表名
func (RewardGrant) TableName() string { return "reward_grants" }
