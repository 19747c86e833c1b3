package application

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/risk/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
)

const signalCount = 8

// signalResult 单信号评分结果。failed 表示查询降级，贡献按中性 0 计；
// skipped 表示提交缺少该信号的输入，未发起任何查询。
type signalResult struct {
	contribution float64
	reason       string
	failed       bool
	skipped      bool
}

// Scorer 账号欺诈风险评分引擎。
// Score 对调用方永不报错：单信号失败降级为中性贡献，全部失败退化为保守默认。
type Scorer struct {
	history       domain.AccountHistoryRepository
	velocity      domain.VelocityCounter
	hashes        domain.ImageHashIndex
	store         domain.ImageStore
	signalTimeout time.Duration
	metrics       *metrics.Metrics
}

// NewScorer 创建风险评分引擎
func NewScorer(
	history domain.AccountHistoryRepository,
	velocity domain.VelocityCounter,
	hashes domain.ImageHashIndex,
	store domain.ImageStore,
	signalTimeout time.Duration,
	m *metrics.Metrics,
) *Scorer {
	return &Scorer{
		history:       history,
		velocity:      velocity,
		hashes:        hashes,
		store:         store,
		signalTimeout: signalTimeout,
		metrics:       m,
	}
}

// Score 计算提交账号的欺诈风险裁决
func (s *Scorer) Score(ctx context.Context, sub listingdomain.Submission) domain.RiskVerdict {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ScoringDuration.WithLabelValues("risk").Observe(time.Since(start).Seconds())
		}
	}()

	now := sub.SubmittedAt
	if now.IsZero() {
		now = time.Now()
	}

	// 画像为身份年龄、支付历史、共享网络三个信号共用，先取一次
	profile, profileErr := s.fetchProfile(ctx, sub.SubmitterID)
	if profileErr != nil {
		logger.Warn(ctx, "Account profile lookup degraded", "account_id", sub.SubmitterID, "error", profileErr)
	}

	var results [signalCount]signalResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results[0] = s.identityAgeSignal(profile, profileErr, now)
		return nil
	})
	g.Go(func() error {
		results[1] = s.paymentHistorySignal(profile, profileErr)
		return nil
	})
	g.Go(func() error {
		results[2] = s.priorReportsSignal(gctx, sub.SubmitterID)
		return nil
	})
	g.Go(func() error {
		results[3] = s.velocitySignal(gctx, sub.SubmitterID)
		return nil
	})
	g.Go(func() error {
		results[4] = s.duplicateImageSignal(gctx, sub.Images)
		return nil
	})
	g.Go(func() error {
		results[5] = s.locationSignal(gctx, sub, now)
		return nil
	})
	g.Go(func() error {
		results[6] = s.behaviorSignal(gctx, sub.SubmitterID, now)
		return nil
	})
	g.Go(func() error {
		results[7] = s.networkSignal(gctx, profile, profileErr)
		return nil
	})
	_ = g.Wait()

	var score float64
	var reasons []string
	failed, attempted := 0, 0
	for _, r := range results {
		if r.skipped {
			continue
		}
		attempted++
		if r.failed {
			failed++
			continue
		}
		score += r.contribution
		if r.reason != "" {
			reasons = append(reasons, r.reason)
		}
	}

	// 未尝试的信号不参与全失败判定，缺图缺位置的提交同样受保守默认保护
	if failed > 0 && failed == attempted {
		logger.Error(ctx, "All risk signals failed, returning conservative default", "account_id", sub.SubmitterID)
		return domain.ConservativeDefault()
	}

	return domain.NewVerdict(score, reasons)
}

func (s *Scorer) fetchProfile(ctx context.Context, accountID string) (*domain.AccountProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	return s.history.GetProfile(ctx, accountID)
}

func (s *Scorer) degraded(signal string, err error) signalResult {
	if s.metrics != nil {
		s.metrics.SignalDegradedTotal.WithLabelValues(signal).Inc()
	}
	return signalResult{failed: true}
}

func (s *Scorer) identityAgeSignal(profile *domain.AccountProfile, profileErr error, now time.Time) signalResult {
	if profileErr != nil {
		return s.degraded("identity_age", profileErr)
	}
	ageDays := now.Sub(profile.RegisteredAt).Hours() / 24
	if ageDays >= domain.MinIdentityAgeDays {
		return signalResult{}
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return signalResult{
		contribution: domain.WeightIdentityAge * (1 - ageDays/domain.MinIdentityAgeDays),
		reason:       "account identity age below minimum",
	}
}

func (s *Scorer) paymentHistorySignal(profile *domain.AccountProfile, profileErr error) signalResult {
	if profileErr != nil {
		return s.degraded("payment_history", profileErr)
	}
	months := profile.PaymentHistoryMonths
	if months >= domain.MinPaymentMonths {
		return signalResult{}
	}
	if months < 0 {
		months = 0
	}
	return signalResult{
		contribution: domain.WeightPaymentHistory * (1 - float64(months)/domain.MinPaymentMonths),
		reason:       "insufficient payment history",
	}
}

func (s *Scorer) priorReportsSignal(ctx context.Context, accountID string) signalResult {
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	count, err := s.history.CountConfirmedReports(ctx, accountID)
	if err != nil {
		logger.Warn(ctx, "Prior reports lookup degraded", "account_id", accountID, "error", err)
		return s.degraded("prior_reports", err)
	}
	if count <= 0 {
		return signalResult{}
	}
	scale := float64(count) / domain.ReportCountCeiling
	if scale > 1 {
		scale = 1
	}
	return signalResult{
		contribution: domain.WeightPriorReports * scale,
		reason:       "account has confirmed community reports",
	}
}

func (s *Scorer) velocitySignal(ctx context.Context, accountID string) signalResult {
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	count, err := s.velocity.UploadsToday(ctx, accountID)
	if err != nil {
		logger.Warn(ctx, "Upload velocity lookup degraded", "account_id", accountID, "error", err)
		return s.degraded("upload_velocity", err)
	}
	if count <= domain.DailyUploadCeiling {
		return signalResult{}
	}
	scale := float64(count-domain.DailyUploadCeiling) / domain.DailyUploadCeiling
	if scale > 1 {
		scale = 1
	}
	return signalResult{
		contribution: domain.WeightUploadVelocity * scale,
		reason:       "unusual same-day upload volume",
	}
}

// duplicateImageSignal 精确内容 hash 匹配。已知弱点：不做感知 hash，
// 轻微裁剪或重新压缩即可绕过。
func (s *Scorer) duplicateImageSignal(ctx context.Context, images []listingdomain.ImageRef) signalResult {
	if len(images) == 0 {
		return signalResult{skipped: true}
	}
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	for _, img := range images {
		hash, err := s.store.ContentHash(ctx, img.ObjectKey)
		if err != nil {
			logger.Warn(ctx, "Image hash computation degraded", "object_key", img.ObjectKey, "error", err)
			return s.degraded("duplicate_image", err)
		}
		exists, err := s.hashes.Exists(ctx, hash)
		if err != nil {
			logger.Warn(ctx, "Image hash index lookup degraded", "error", err)
			return s.degraded("duplicate_image", err)
		}
		if exists {
			return signalResult{
				contribution: domain.WeightDuplicateImage,
				reason:       "duplicate listing image detected",
			}
		}
	}
	return signalResult{}
}

func (s *Scorer) locationSignal(ctx context.Context, sub listingdomain.Submission, now time.Time) signalResult {
	if sub.Location == nil {
		return signalResult{skipped: true}
	}
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	history, err := s.history.RecentLocations(ctx, sub.SubmitterID, 20)
	if err != nil {
		logger.Warn(ctx, "Location history lookup degraded", "account_id", sub.SubmitterID, "error", err)
		return s.degraded("location", err)
	}
	current := &domain.LocationPoint{Lat: sub.Location.Lat, Lng: sub.Location.Lng, RecordedAt: now}
	consistency := domain.LocationConsistency(current, history)
	if consistency >= 1 {
		return signalResult{}
	}
	return signalResult{
		contribution: domain.WeightLocation * (1 - consistency),
		reason:       "location inconsistent with account history",
	}
}

func (s *Scorer) behaviorSignal(ctx context.Context, accountID string, now time.Time) signalResult {
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	times, err := s.history.RecentUploadTimes(ctx, accountID, now.Add(-24*time.Hour))
	if err != nil {
		logger.Warn(ctx, "Upload times lookup degraded", "account_id", accountID, "error", err)
		return s.degraded("behavior", err)
	}
	if !domain.IntervalsRegular(times) {
		return signalResult{}
	}
	return signalResult{
		contribution: domain.WeightBehavior,
		reason:       "machine-like upload regularity",
	}
}

func (s *Scorer) networkSignal(ctx context.Context, profile *domain.AccountProfile, profileErr error) signalResult {
	if profileErr != nil {
		return s.degraded("network", profileErr)
	}
	if profile.NetworkFingerprint == "" {
		return signalResult{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.signalTimeout)
	defer cancel()
	count, err := s.history.CountAccountsOnNetwork(ctx, profile.NetworkFingerprint)
	if err != nil {
		logger.Warn(ctx, "Network fan-out lookup degraded", "error", err)
		return s.degraded("network", err)
	}
	if count <= domain.NetworkFanoutCeiling {
		return signalResult{}
	}
	scale := float64(count-domain.NetworkFanoutCeiling) / domain.NetworkFanoutCeiling
	if scale > 1 {
		scale = 1
	}
	return signalResult{
		contribution: domain.WeightNetwork * scale,
		reason:       "shared network fan-out",
	}
}
