package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
	reviewdomain "github.com/wyfcoding/marketplace/internal/review/domain"
	riskdomain "github.com/wyfcoding/marketplace/internal/risk/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
	"github.com/wyfcoding/marketplace/pkg/ratelimit"
)

// 准入域发件箱事件类型
const (
	EventDecided        = "admission.decided"
	EventSecurityBlock  = "admission.security_block"
	EventEngineDegraded = "admission.engine_degraded"
)

// DecidedEvent 准入决策事件
type DecidedEvent struct {
	ListingID    string                      `json:"listing_id"`
	SubmitterID  string                      `json:"submitter_id"`
	Channel      listingdomain.Channel       `json:"channel"`
	Status       listingdomain.ListingStatus `json:"status"`
	RiskLevel    riskdomain.RiskLevel        `json:"risk_level"`
	RiskScore    float64                     `json:"risk_score"`
	Confidence   float64                     `json:"confidence"`
	QueueEntryID string                      `json:"queue_entry_id,omitempty"`
	DecidedAt    time.Time                   `json:"decided_at"`
}

// SecurityBlockEvent 风控拦截事件，进入独立的安全审计流
type SecurityBlockEvent struct {
	ListingID   string    `json:"listing_id"`
	SubmitterID string    `json:"submitter_id"`
	RiskScore   float64   `json:"risk_score"`
	Reasons     []string  `json:"reasons"`
	BlockedAt   time.Time `json:"blocked_at"`
}

// EngineDegradedEvent 评分引擎整体降级事件，供值班告警
type EngineDegradedEvent struct {
	ListingID   string    `json:"listing_id"`
	SubmitterID string    `json:"submitter_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RiskScorer 欺诈风险评分
type RiskScorer interface {
	Score(ctx context.Context, sub listingdomain.Submission) riskdomain.RiskVerdict
}

// ModerationScorer 内容审核评分
type ModerationScorer interface {
	Score(ctx context.Context, sub listingdomain.Submission) moderationdomain.ModerationVerdict
}

// Enqueuer 审核队列入队，在准入事务内执行
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, listingID string, risk riskdomain.RiskVerdict, mod moderationdomain.ModerationVerdict) (*reviewdomain.QueueEntry, error)
}

// VelocityRecorder 记录账号当日上传次数，供风险引擎的速率信号读取
type VelocityRecorder interface {
	Record(ctx context.Context, accountID string) error
}

// TxRunner 事务执行器，由 pkg/db 提供
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*gorm.DB) error) error
}

// OutboxAppender 事务内发件箱写入
type OutboxAppender interface {
	Append(ctx context.Context, tx *gorm.DB, eventType, aggregateID string, payload interface{}) error
}

// Service 准入状态机。融合策略、风险裁决与审核裁决，给提交定初始状态。
type Service struct {
	policy      domain.PolicyLookup
	limiter     ratelimit.RateLimiter
	risk        RiskScorer
	moderation  ModerationScorer
	listingRepo listingdomain.ListingRepository
	enqueuer    Enqueuer
	velocity    VelocityRecorder
	store       riskdomain.ImageStore
	database    TxRunner
	outbox      OutboxAppender
	metrics     *metrics.Metrics
}

// NewService 创建准入服务
func NewService(
	policy domain.PolicyLookup,
	limiter ratelimit.RateLimiter,
	risk RiskScorer,
	moderation ModerationScorer,
	listingRepo listingdomain.ListingRepository,
	enqueuer Enqueuer,
	velocity VelocityRecorder,
	store riskdomain.ImageStore,
	database TxRunner,
	outbox OutboxAppender,
	m *metrics.Metrics,
) *Service {
	return &Service{
		policy:      policy,
		limiter:     limiter,
		risk:        risk,
		moderation:  moderation,
		listingRepo: listingRepo,
		enqueuer:    enqueuer,
		velocity:    velocity,
		store:       store,
		database:    database,
		outbox:      outbox,
		metrics:     m,
	}
}

// Admit 对一次提交做准入决策。
// 决策顺序短路：策略拒绝不触发任何评分；风控拦截不产生队列项。
func (s *Service) Admit(ctx context.Context, sub listingdomain.Submission) (*domain.Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	policy, err := s.policy.PolicyFor(ctx, sub.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}

	if !policy.CanUpload {
		reason := policy.ReasonIfDenied
		if reason == "" {
			reason = "account is not permitted to upload"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, reason)
	}
	if sub.Channel == listingdomain.ChannelBatch && !policy.BulkAllowed {
		return nil, domain.ErrBulkNotAllowed
	}

	if err := s.consumeDailyQuota(ctx, sub, policy); err != nil {
		return nil, err
	}

	listingID := fmt.Sprintf("LST-%d", idgen.GenID())

	var (
		risk riskdomain.RiskVerdict
		mod  moderationdomain.ModerationVerdict
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		risk = s.risk.Score(gctx, sub)
		return nil
	})
	g.Go(func() error {
		mod = s.moderation.Score(gctx, sub)
		return nil
	})
	_ = g.Wait()

	if risk.Block {
		if err := s.persistBlocked(ctx, listingID, sub, risk, mod); err != nil {
			return nil, err
		}
		s.recordVelocity(ctx, sub.SubmitterID)
		return nil, domain.ErrSecurityBlock
	}

	highValue := sub.Price.GreaterThan(policy.MaxListingValue)
	status := listingdomain.StatusPending
	if !domain.ReviewRequired(policy, sub, mod) && mod.Confidence > moderationdomain.AutoApproveThreshold {
		status = listingdomain.StatusApproved
	}

	result := &domain.Result{
		ListingID:  listingID,
		Status:     status,
		Risk:       risk,
		Moderation: mod,
	}

	err = s.database.WithTx(ctx, func(tx *gorm.DB) error {
		listing := s.buildListing(listingID, sub, risk, mod, status, false)
		images := s.buildImages(ctx, listingID, sub)
		if err := s.listingRepo.WithTx(tx).Save(ctx, listing, images); err != nil {
			return err
		}

		if status == listingdomain.StatusPending {
			entry, err := s.enqueuer.Enqueue(ctx, tx, listingID, risk, mod)
			if err != nil {
				return err
			}
			result.QueueEntryID = entry.EntryID
			result.EstimatedReviewMinutes = domain.EstimateReviewMinutes(len(mod.FlaggedIssues), highValue)
		}

		if err := s.outbox.Append(ctx, tx, EventDecided, listingID, DecidedEvent{
			ListingID:    listingID,
			SubmitterID:  sub.SubmitterID,
			Channel:      sub.Channel,
			Status:       status,
			RiskLevel:    risk.Level,
			RiskScore:    risk.Score,
			Confidence:   mod.Confidence,
			QueueEntryID: result.QueueEntryID,
			DecidedAt:    time.Now(),
		}); err != nil {
			return err
		}

		if degraded(mod) {
			return s.outbox.Append(ctx, tx, EventEngineDegraded, listingID, EngineDegradedEvent{
				ListingID:   listingID,
				SubmitterID: sub.SubmitterID,
				OccurredAt:  time.Now(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordVelocity(ctx, sub.SubmitterID)
	if s.metrics != nil {
		s.metrics.AdmissionsTotal.WithLabelValues(string(status)).Inc()
	}
	logger.Info(ctx, "Admission decided",
		"listing_id", listingID, "submitter_id", sub.SubmitterID, "status", status,
		"risk_level", risk.Level, "risk_score", risk.Score, "confidence", mod.Confidence,
		"queue_entry_id", result.QueueEntryID)
	return result, nil
}

// consumeDailyQuota 原子扣减当日配额，并发提交不会双双通过
func (s *Service) consumeDailyQuota(ctx context.Context, sub listingdomain.Submission, policy *domain.Policy) error {
	if policy.DailyLimit <= 0 {
		return nil
	}
	key := "admission:daily:" + sub.SubmitterID
	if sub.Channel == listingdomain.ChannelBatch {
		key = "admission:bulk:" + sub.SubmitterID
	}
	res, err := s.limiter.Allow(ctx, key, ratelimit.PerDay(policy.DailyLimit))
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if !res.Allowed {
		return domain.ErrLimitExceeded
	}
	return nil
}

// persistBlocked 落库风控拦截。带安全标记，不入队，独立安全事件外发。
func (s *Service) persistBlocked(ctx context.Context, listingID string, sub listingdomain.Submission, risk riskdomain.RiskVerdict, mod moderationdomain.ModerationVerdict) error {
	err := s.database.WithTx(ctx, func(tx *gorm.DB) error {
		listing := s.buildListing(listingID, sub, risk, mod, listingdomain.StatusRejected, true)
		images := s.buildImages(ctx, listingID, sub)
		if err := s.listingRepo.WithTx(tx).Save(ctx, listing, images); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, EventSecurityBlock, listingID, SecurityBlockEvent{
			ListingID:   listingID,
			SubmitterID: sub.SubmitterID,
			RiskScore:   risk.Score,
			Reasons:     risk.Reasons,
			BlockedAt:   time.Now(),
		})
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.SecurityBlocksTotal.Inc()
		s.metrics.AdmissionsTotal.WithLabelValues("BLOCKED").Inc()
	}
	logger.Warn(ctx, "Submission blocked by risk engine",
		"listing_id", listingID, "submitter_id", sub.SubmitterID, "risk_score", risk.Score, "reasons", risk.Reasons)
	return nil
}

func (s *Service) buildListing(listingID string, sub listingdomain.Submission, risk riskdomain.RiskVerdict, mod moderationdomain.ModerationVerdict, status listingdomain.ListingStatus, securityFlag bool) *listingdomain.Listing {
	return &listingdomain.Listing{
		ListingID:    listingID,
		SubmitterID:  sub.SubmitterID,
		Name:         sub.Name,
		Price:        sub.Price,
		Unit:         sub.Unit,
		Category:     sub.Category,
		Description:  sub.Description,
		Channel:      sub.Channel,
		CulturalTag:  sub.CulturalTag,
		Status:       status,
		SecurityFlag: securityFlag,
		RiskLevel:    string(risk.Level),
		RiskScore:    decimal.NewFromFloat(risk.Score),
		Confidence:   decimal.NewFromFloat(mod.Confidence),
	}
}

// buildImages 计算图片内容 hash 供后续重复检测。hash 失败不阻断准入。
func (s *Service) buildImages(ctx context.Context, listingID string, sub listingdomain.Submission) []listingdomain.ListingImage {
	images := make([]listingdomain.ListingImage, 0, len(sub.Images))
	for _, ref := range sub.Images {
		hash, err := s.store.ContentHash(ctx, ref.ObjectKey)
		if err != nil {
			logger.Warn(ctx, "Failed to hash listing image", "listing_id", listingID, "object_key", ref.ObjectKey, "error", err)
			hash = ""
		}
		images = append(images, listingdomain.ListingImage{
			ListingID: listingID,
			ObjectKey: ref.ObjectKey,
			Hash:      hash,
		})
	}
	return images
}

func (s *Service) recordVelocity(ctx context.Context, accountID string) {
	if err := s.velocity.Record(ctx, accountID); err != nil {
		logger.Warn(ctx, "Failed to record upload velocity", "account_id", accountID, "error", err)
	}
}

func degraded(mod moderationdomain.ModerationVerdict) bool {
	for _, issue := range mod.FlaggedIssues {
		if issue == moderationdomain.IssueAnalysisDegraded {
			return true
		}
	}
	return false
}
