package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/pkg/idgen"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
	"github.com/wyfcoding/marketplace/internal/review/domain"
	riskdomain "github.com/wyfcoding/marketplace/internal/risk/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
)

// 审核域发件箱事件类型
const (
	EventEntryResolved   = "review.entry_resolved"
	EventReportSubmitted = "review.report_submitted"
	EventReportValidated = "review.report_validated"
)

// EntryResolvedEvent 队列项裁决事件
type EntryResolvedEvent struct {
	EntryID     string    `json:"entry_id"`
	ListingID   string    `json:"listing_id"`
	ModeratorID string    `json:"moderator_id"`
	Approved    bool      `json:"approved"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// ReportSubmittedEvent 举报提交事件
type ReportSubmittedEvent struct {
	ReportID   string    `json:"report_id"`
	ListingID  string    `json:"listing_id"`
	ReporterID string    `json:"reporter_id"`
	ReasonCode string    `json:"reason_code"`
	Escalated  bool      `json:"escalated"`
	ReFlagged  bool      `json:"re_flagged"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportValidatedEvent 举报裁决事件
type ReportValidatedEvent struct {
	ReportID    string    `json:"report_id"`
	ListingID   string    `json:"listing_id"`
	ModeratorID string    `json:"moderator_id"`
	Confirmed   bool      `json:"confirmed"`
	ValidatedAt time.Time `json:"validated_at"`
}

// TxRunner 事务执行器，由 pkg/db 提供
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*gorm.DB) error) error
}

// OutboxAppender 事务内发件箱写入
type OutboxAppender interface {
	Append(ctx context.Context, tx *gorm.DB, eventType, aggregateID string, payload interface{}) error
}

// QueueService 审核队列应用服务
type QueueService struct {
	queueRepo   domain.QueueRepository
	listingRepo listingdomain.ListingRepository
	database    TxRunner
	outbox      OutboxAppender
	metrics     *metrics.Metrics
}

// NewQueueService 创建队列服务
func NewQueueService(
	queueRepo domain.QueueRepository,
	listingRepo listingdomain.ListingRepository,
	database TxRunner,
	outbox OutboxAppender,
	m *metrics.Metrics,
) *QueueService {
	return &QueueService{
		queueRepo:   queueRepo,
		listingRepo: listingRepo,
		database:    database,
		outbox:      outbox,
		metrics:     m,
	}
}

// Enqueue 在调用方事务内入队。优先级由审核裁决推导，快照随队列项落库。
func (s *QueueService) Enqueue(
	ctx context.Context,
	tx *gorm.DB,
	listingID string,
	risk riskdomain.RiskVerdict,
	mod moderationdomain.ModerationVerdict,
) (*domain.QueueEntry, error) {
	riskSnap, err := json.Marshal(risk)
	if err != nil {
		return nil, err
	}
	modSnap, err := json.Marshal(mod)
	if err != nil {
		return nil, err
	}

	entry := &domain.QueueEntry{
		EntryID:            fmt.Sprintf("ENT-%d", idgen.GenID()),
		ListingID:          listingID,
		RiskSnapshot:       string(riskSnap),
		ModerationSnapshot: string(modSnap),
		Priority:           domain.ComputePriority(mod),
		Status:             domain.EntryStatusOpen,
	}
	if err := s.queueRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.Inc()
	}
	return entry, nil
}

// EnqueueReFlagged 为重新标记的已上架商品入队，携带落库时的风险快照
func (s *QueueService) EnqueueReFlagged(ctx context.Context, tx *gorm.DB, listing *listingdomain.Listing) (*domain.QueueEntry, error) {
	risk := riskdomain.RiskVerdict{
		Level: riskdomain.RiskLevel(listing.RiskLevel),
		Score: listing.RiskScore.InexactFloat64(),
	}
	mod := moderationdomain.ModerationVerdict{Confidence: listing.Confidence.InexactFloat64()}

	riskSnap, _ := json.Marshal(risk)
	modSnap, _ := json.Marshal(mod)

	entry := &domain.QueueEntry{
		EntryID:            fmt.Sprintf("ENT-%d", idgen.GenID()),
		ListingID:          listing.ListingID,
		RiskSnapshot:       string(riskSnap),
		ModerationSnapshot: string(modSnap),
		Priority:           domain.PriorityMedium,
		Status:             domain.EntryStatusOpen,
	}
	if err := s.queueRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.Inc()
	}
	return entry, nil
}

// Resolve 人工裁决队列项：关闭队列项并终结商品状态，同事务写发件箱。
func (s *QueueService) Resolve(ctx context.Context, entryID, moderatorID string, approve bool) error {
	entry, err := s.queueRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status != domain.EntryStatusOpen {
		return domain.ErrEntryResolved
	}

	target := listingdomain.StatusRejected
	if approve {
		target = listingdomain.StatusApproved
	}

	err = s.database.WithTx(ctx, func(tx *gorm.DB) error {
		hit, err := s.queueRepo.WithTx(tx).Resolve(ctx, entryID, moderatorID)
		if err != nil {
			return err
		}
		if !hit {
			return domain.ErrEntryResolved
		}
		hit, err = s.listingRepo.WithTx(tx).UpdateStatus(ctx, entry.ListingID, listingdomain.StatusPending, target)
		if err != nil {
			return err
		}
		if !hit {
			return listingdomain.ErrListingNotPending
		}
		return s.outbox.Append(ctx, tx, EventEntryResolved, entry.ListingID, EntryResolvedEvent{
			EntryID:     entryID,
			ListingID:   entry.ListingID,
			ModeratorID: moderatorID,
			Approved:    approve,
			ResolvedAt:  time.Now(),
		})
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.QueueDepth.Dec()
		s.metrics.AdmissionsTotal.WithLabelValues(string(target)).Inc()
	}
	logger.Info(ctx, "Queue entry resolved", "entry_id", entryID, "listing_id", entry.ListingID, "approved", approve)
	return nil
}

// GetEntry 查询队列项
func (s *QueueService) GetEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	return s.queueRepo.GetByEntryID(ctx, entryID)
}

// ListOpen 按优先级取开放队列项，并顺带校准队列深度指标
func (s *QueueService) ListOpen(ctx context.Context, limit int) ([]*domain.QueueEntry, error) {
	entries, err := s.queueRepo.ListOpen(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		if count, err := s.queueRepo.CountOpen(ctx); err == nil {
			s.metrics.QueueDepth.Set(float64(count))
		}
	}
	return entries, nil
}

// ReportService 社区举报应用服务
type ReportService struct {
	reportRepo  domain.ReportRepository
	queueRepo   domain.QueueRepository
	rewardRepo  domain.RewardRepository
	window      domain.ReportWindowCounter
	listingRepo listingdomain.ListingRepository
	queueSvc    *QueueService
	database    TxRunner
	outbox      OutboxAppender
	metrics     *metrics.Metrics
}

// NewReportService 创建举报服务
func NewReportService(
	reportRepo domain.ReportRepository,
	queueRepo domain.QueueRepository,
	rewardRepo domain.RewardRepository,
	window domain.ReportWindowCounter,
	listingRepo listingdomain.ListingRepository,
	queueSvc *QueueService,
	database TxRunner,
	outbox OutboxAppender,
	m *metrics.Metrics,
) *ReportService {
	return &ReportService{
		reportRepo:  reportRepo,
		queueRepo:   queueRepo,
		rewardRepo:  rewardRepo,
		window:      window,
		listingRepo: listingRepo,
		queueSvc:    queueSvc,
		database:    database,
		outbox:      outbox,
		metrics:     m,
	}
}

// Submit 提交社区举报。
// 已上架商品被举报时回退为待审并重新入队；24 小时窗口内第 3 条举报将开放队列项强制升为高优先级。
func (s *ReportService) Submit(ctx context.Context, listingID, reporterID, reasonCode, description, evidence string) (*domain.CommunityReport, error) {
	listing, err := s.listingRepo.GetByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	report := &domain.CommunityReport{
		ReportID:    fmt.Sprintf("RPT-%d", idgen.GenID()),
		ListingID:   listingID,
		ReporterID:  reporterID,
		ReasonCode:  reasonCode,
		Description: description,
		Evidence:    evidence,
		Status:      domain.ReportStatusPending,
	}

	reFlagged := false
	err = s.database.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.reportRepo.WithTx(tx).Create(ctx, report); err != nil {
			return err
		}
		if listing.Status == listingdomain.StatusApproved {
			hit, err := s.listingRepo.WithTx(tx).UpdateStatus(ctx, listingID, listingdomain.StatusApproved, listingdomain.StatusPending)
			if err != nil {
				return err
			}
			if hit {
				if _, err := s.queueSvc.EnqueueReFlagged(ctx, tx, listing); err != nil {
					return err
				}
				reFlagged = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	escalated := s.escalate(ctx, listingID)

	if s.metrics != nil {
		s.metrics.ReportsTotal.Inc()
	}

	event := ReportSubmittedEvent{
		ReportID:   report.ReportID,
		ListingID:  listingID,
		ReporterID: reporterID,
		ReasonCode: reasonCode,
		Escalated:  escalated,
		ReFlagged:  reFlagged,
		CreatedAt:  time.Now(),
	}
	if err := s.database.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Append(ctx, tx, EventReportSubmitted, listingID, event)
	}); err != nil {
		logger.Error(ctx, "Failed to append report event", "report_id", report.ReportID, "error", err)
	}

	logger.Info(ctx, "Community report submitted",
		"report_id", report.ReportID, "listing_id", listingID, "escalated", escalated, "re_flagged", reFlagged)
	return report, nil
}

// escalate 窗口计数达阈值后对开放队列项做条件升级，并发举报只会命中一次
func (s *ReportService) escalate(ctx context.Context, listingID string) bool {
	count, err := s.window.Increment(ctx, listingID)
	if err != nil {
		logger.Warn(ctx, "Report window counter unavailable", "listing_id", listingID, "error", err)
		return false
	}
	if count < domain.EscalationThreshold {
		return false
	}
	hit, err := s.queueRepo.EscalatePriority(ctx, listingID)
	if err != nil {
		logger.Error(ctx, "Failed to escalate queue entry", "listing_id", listingID, "error", err)
		return false
	}
	if hit && s.metrics != nil {
		s.metrics.EscalationsTotal.Inc()
	}
	return hit
}

// Validate 人工裁决举报，恰好转移一次。实锤举报发放固定奖励，按 report_id 幂等。
func (s *ReportService) Validate(ctx context.Context, reportID, moderatorID string, confirmed bool) error {
	report, err := s.reportRepo.GetByReportID(ctx, reportID)
	if err != nil {
		return err
	}

	to := domain.ReportStatusRejected
	if confirmed {
		to = domain.ReportStatusConfirmed
	}

	rewardGranted := false
	err = s.database.WithTx(ctx, func(tx *gorm.DB) error {
		hit, err := s.reportRepo.WithTx(tx).Transition(ctx, reportID, to, moderatorID)
		if err != nil {
			return err
		}
		if !hit {
			return domain.ErrReportResolved
		}
		return s.outbox.Append(ctx, tx, EventReportValidated, report.ListingID, ReportValidatedEvent{
			ReportID:    reportID,
			ListingID:   report.ListingID,
			ModeratorID: moderatorID,
			Confirmed:   confirmed,
			ValidatedAt: time.Now(),
		})
	})
	if err != nil {
		return err
	}

	if confirmed {
		granted, err := s.rewardRepo.Grant(ctx, &domain.RewardGrant{
			ReportID:   reportID,
			ReporterID: report.ReporterID,
			Amount:     domain.RewardAmount,
		})
		if err != nil {
			logger.Error(ctx, "Failed to grant reward", "report_id", reportID, "error", err)
		} else if granted {
			rewardGranted = true
			if s.metrics != nil {
				s.metrics.RewardsGrantedTotal.Inc()
			}
		}
	}

	logger.Info(ctx, "Report validated",
		"report_id", reportID, "confirmed", confirmed, "reward_granted", rewardGranted)
	return nil
}

// ListReports 商品名下的举报列表
func (s *ReportService) ListReports(ctx context.Context, listingID string) ([]*domain.CommunityReport, error) {
	return s.reportRepo.ListByListingID(ctx, listingID)
}
