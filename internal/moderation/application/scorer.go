package application

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/moderation/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
)

// ComparableWindow 可比价格的时间窗口
const ComparableWindow = 30 * 24 * time.Hour

// Scorer 内容审核评分引擎。三路分析（价格、图片、文本）并发执行，
// 单路失败降级为"该路无问题"，三路全失败退化为略低于自动通过线的置信度。
type Scorer struct {
	prices     domain.PriceHistoryLookup
	classifier domain.ImageClassifier
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// NewScorer 创建审核评分引擎
func NewScorer(prices domain.PriceHistoryLookup, classifier domain.ImageClassifier, timeout time.Duration, m *metrics.Metrics) *Scorer {
	return &Scorer{prices: prices, classifier: classifier, timeout: timeout, metrics: m}
}

// Score 计算商品内容的审核裁决
func (s *Scorer) Score(ctx context.Context, sub listingdomain.Submission) domain.ModerationVerdict {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ScoringDuration.WithLabelValues("moderation").Observe(time.Since(start).Seconds())
		}
	}()

	var (
		price *domain.PriceAnalysis
		image *domain.ImageAnalysis
		text  *domain.TextAnalysis

		priceFailed, imageFailed, textFailed bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, priceFailed = s.analyzePrice(gctx, sub)
		return nil
	})
	g.Go(func() error {
		image, imageFailed = s.analyzeImages(gctx, sub)
		return nil
	})
	g.Go(func() error {
		text, textFailed = s.analyzeText(sub)
		return nil
	})
	_ = g.Wait()

	// 图片为零的提交不算图片分析失败
	imageAttempted := len(sub.Images) > 0
	if priceFailed && textFailed && (!imageAttempted || imageFailed) {
		logger.Error(ctx, "All moderation analyses failed, degrading to review threshold",
			"submitter_id", sub.SubmitterID)
		return domain.ModerationVerdict{
			Confidence:    domain.DegradedConfidence,
			FlaggedIssues: []domain.Issue{domain.IssueAnalysisDegraded},
		}
	}

	var issues []domain.Issue
	if price != nil && price.Anomalous {
		issues = append(issues, domain.IssuePriceDeviation)
	}
	if image != nil {
		nonProduct, mismatch := false, false
		for _, c := range image.Classifications {
			if !c.IsProduct {
				nonProduct = true
			}
			if !c.MatchesCategory {
				mismatch = true
			}
		}
		if nonProduct {
			issues = append(issues, domain.IssueNonProductImage)
		}
		if mismatch {
			issues = append(issues, domain.IssueImageMismatch)
		}
	}
	if text != nil {
		if len(text.ProhibitedTerms) > 0 {
			issues = append(issues, domain.IssueProhibitedText)
		}
		if !text.ScriptOK {
			issues = append(issues, domain.IssueScriptViolation)
		}
		if domain.StronglyNegative(text.SentimentDelta) {
			issues = append(issues, domain.IssueNegativeSentiment)
		}
	}

	return domain.ModerationVerdict{
		Confidence:    domain.ComputeConfidence(issues),
		FlaggedIssues: issues,
		PriceAnalysis: price,
		ImageAnalysis: image,
		TextAnalysis:  text,
	}
}

// analyzePrice 与 30 天窗口内同品类同单位已通过商品的中位价比较。
// 可比数不足一个则不判异常。偏离判定为严格大于阈值。
func (s *Scorer) analyzePrice(ctx context.Context, sub listingdomain.Submission) (*domain.PriceAnalysis, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	median, comparables, err := s.prices.MedianApprovedPrice(ctx, sub.Category, sub.Unit, ComparableWindow)
	if err != nil {
		logger.Warn(ctx, "Price history lookup degraded", "category", sub.Category, "error", err)
		if s.metrics != nil {
			s.metrics.SignalDegradedTotal.WithLabelValues("price_history").Inc()
		}
		return nil, true
	}
	if comparables < 1 || median.IsZero() {
		return &domain.PriceAnalysis{Median: median, Comparables: comparables}, false
	}

	deviation := sub.Price.Sub(median).Div(median)
	return &domain.PriceAnalysis{
		Median:      median,
		Deviation:   deviation,
		Comparables: comparables,
		Anomalous:   deviation.Abs().GreaterThan(domain.PriceDeviationThreshold),
	}, false
}

// analyzeImages 零图片直接跳过，不奖不罚
func (s *Scorer) analyzeImages(ctx context.Context, sub listingdomain.Submission) (*domain.ImageAnalysis, bool) {
	if len(sub.Images) == 0 {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	classifications := make([]domain.ImageClassification, 0, len(sub.Images))
	for _, ref := range sub.Images {
		c, err := s.classifier.Classify(ctx, ref, sub.Category, sub.Description)
		if err != nil {
			logger.Warn(ctx, "Image classification degraded", "object_key", ref.ObjectKey, "error", err)
			if s.metrics != nil {
				s.metrics.SignalDegradedTotal.WithLabelValues("image_classify").Inc()
			}
			return nil, true
		}
		classifications = append(classifications, c)
	}
	return &domain.ImageAnalysis{Classifications: classifications}, false
}

// analyzeText 纯内存分析，不依赖外部查询
func (s *Scorer) analyzeText(sub listingdomain.Submission) (*domain.TextAnalysis, bool) {
	text := sub.Name + " " + sub.Description
	return &domain.TextAnalysis{
		ProhibitedTerms: domain.FindProhibitedTerms(text),
		ScriptOK:        domain.ScriptAllowed(text),
		SentimentDelta:  domain.SentimentDelta(text),
	}, false
}
