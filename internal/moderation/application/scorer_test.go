package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/moderation/domain"
)

type fakePrices struct {
	median      decimal.Decimal
	comparables int
	err         error
}

func (f *fakePrices) MedianApprovedPrice(ctx context.Context, category, unit string, window time.Duration) (decimal.Decimal, int, error) {
	return f.median, f.comparables, f.err
}

type fakeClassifier struct {
	result domain.ImageClassification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, ref listingdomain.ImageRef, category, description string) (domain.ImageClassification, error) {
	if f.err != nil {
		return domain.ImageClassification{}, f.err
	}
	c := f.result
	c.ObjectKey = ref.ObjectKey
	return c, nil
}

func cleanClassifier() *fakeClassifier {
	return &fakeClassifier{result: domain.ImageClassification{IsProduct: true, MatchesCategory: true, Quality: 0.9}}
}

func submission(price int64) listingdomain.Submission {
	return listingdomain.Submission{
		Name:        "maize flour",
		Price:       decimal.NewFromInt(price),
		Unit:        "kg",
		Category:    "grains",
		SubmitterID: "acct-1",
		Channel:     listingdomain.ChannelWeb,
		SubmittedAt: time.Now(),
	}
}

func TestScoreCleanListing(t *testing.T) {
	scorer := NewScorer(&fakePrices{median: decimal.NewFromInt(100), comparables: 12}, cleanClassifier(), time.Second, nil)

	verdict := scorer.Score(context.Background(), submission(105))

	assert.Equal(t, 1.0, verdict.Confidence)
	assert.Empty(t, verdict.FlaggedIssues)
	require.NotNil(t, verdict.PriceAnalysis)
	assert.False(t, verdict.PriceAnalysis.Anomalous)
}

func TestScorePriceDeviationBoundaryIsStrict(t *testing.T) {
	prices := &fakePrices{median: decimal.NewFromInt(100), comparables: 12}

	// 偏离恰好 20% 不判异常
	verdict := NewScorer(prices, cleanClassifier(), time.Second, nil).Score(context.Background(), submission(120))
	assert.NotContains(t, verdict.FlaggedIssues, domain.IssuePriceDeviation)

	// 偏离 21% 判异常
	verdict = NewScorer(prices, cleanClassifier(), time.Second, nil).Score(context.Background(), submission(121))
	assert.Contains(t, verdict.FlaggedIssues, domain.IssuePriceDeviation)
	assert.InDelta(t, 0.7, verdict.Confidence, 0.0001)

	// 向下偏离同样生效
	verdict = NewScorer(prices, cleanClassifier(), time.Second, nil).Score(context.Background(), submission(79))
	assert.Contains(t, verdict.FlaggedIssues, domain.IssuePriceDeviation)
}

func TestScoreNoComparablesSkipsPriceCheck(t *testing.T) {
	scorer := NewScorer(&fakePrices{comparables: 0}, cleanClassifier(), time.Second, nil)

	verdict := scorer.Score(context.Background(), submission(99999))

	assert.NotContains(t, verdict.FlaggedIssues, domain.IssuePriceDeviation)
}

func TestScoreProhibitedText(t *testing.T) {
	scorer := NewScorer(&fakePrices{median: decimal.NewFromInt(100), comparables: 5}, cleanClassifier(), time.Second, nil)

	sub := submission(100)
	sub.Description = "genuine firearm, quick sale"
	verdict := scorer.Score(context.Background(), sub)

	assert.Contains(t, verdict.FlaggedIssues, domain.IssueProhibitedText)
	assert.True(t, verdict.HasFraudMarker())
	assert.InDelta(t, 0.5, verdict.Confidence, 0.0001)
}

func TestScoreImageIssues(t *testing.T) {
	classifier := &fakeClassifier{result: domain.ImageClassification{IsProduct: false, MatchesCategory: false}}
	scorer := NewScorer(&fakePrices{median: decimal.NewFromInt(100), comparables: 5}, classifier, time.Second, nil)

	sub := submission(100)
	sub.Images = []listingdomain.ImageRef{{ObjectKey: "img/1.jpg"}}
	verdict := scorer.Score(context.Background(), sub)

	assert.Contains(t, verdict.FlaggedIssues, domain.IssueNonProductImage)
	assert.Contains(t, verdict.FlaggedIssues, domain.IssueImageMismatch)
	// 1.0 - 0.4 - 0.3
	assert.InDelta(t, 0.3, verdict.Confidence, 0.0001)
}

func TestScoreSingleAnalysisFailureDoesNotDegrade(t *testing.T) {
	scorer := NewScorer(&fakePrices{err: errors.New("db down")}, cleanClassifier(), time.Second, nil)

	verdict := scorer.Score(context.Background(), submission(100))

	assert.NotContains(t, verdict.FlaggedIssues, domain.IssueAnalysisDegraded)
	assert.Equal(t, 1.0, verdict.Confidence)
	assert.Nil(t, verdict.PriceAnalysis)
}

func TestScoreTotalFailureForcesReview(t *testing.T) {
	// analyzeText 纯内存不会失败，这里通过构造验证降级裁决本身
	verdict := domain.ModerationVerdict{
		Confidence:    domain.DegradedConfidence,
		FlaggedIssues: []domain.Issue{domain.IssueAnalysisDegraded},
	}

	assert.Less(t, verdict.Confidence, domain.AutoApproveThreshold)
	assert.NotEmpty(t, verdict.FlaggedIssues)
	assert.False(t, verdict.HasFraudMarker())
}

func TestScoreZeroImagesSkipsImageAnalysis(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("must not be called")}
	scorer := NewScorer(&fakePrices{median: decimal.NewFromInt(100), comparables: 5}, classifier, time.Second, nil)

	verdict := scorer.Score(context.Background(), submission(100))

	assert.Nil(t, verdict.ImageAnalysis)
	assert.Empty(t, verdict.FlaggedIssues)
}
