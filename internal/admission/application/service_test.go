package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
	reviewdomain "github.com/wyfcoding/marketplace/internal/review/domain"
	riskdomain "github.com/wyfcoding/marketplace/internal/risk/domain"
	"github.com/wyfcoding/marketplace/pkg/ratelimit"
)

type fakePolicyLookup struct {
	policy *domain.Policy
	err    error
}

func (f *fakePolicyLookup) PolicyFor(ctx context.Context, accountID string) (*domain.Policy, error) {
	return f.policy, f.err
}

type fakeLimiter struct {
	allowed bool
	calls   int
	lastKey string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit ratelimit.Limit) (*ratelimit.Result, error) {
	f.calls++
	f.lastKey = key
	return &ratelimit.Result{Allowed: f.allowed, Remaining: limit.Rate - 1}, nil
}

type fakeRiskScorer struct {
	verdict riskdomain.RiskVerdict
	calls   int
}

func (f *fakeRiskScorer) Score(ctx context.Context, sub listingdomain.Submission) riskdomain.RiskVerdict {
	f.calls++
	return f.verdict
}

type fakeModerationScorer struct {
	verdict moderationdomain.ModerationVerdict
	calls   int
}

func (f *fakeModerationScorer) Score(ctx context.Context, sub listingdomain.Submission) moderationdomain.ModerationVerdict {
	f.calls++
	return f.verdict
}

type fakeListingStore struct {
	saved  map[string]*listingdomain.Listing
	images map[string][]listingdomain.ListingImage
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{
		saved:  make(map[string]*listingdomain.Listing),
		images: make(map[string][]listingdomain.ListingImage),
	}
}

func (f *fakeListingStore) Save(ctx context.Context, listing *listingdomain.Listing, images []listingdomain.ListingImage) error {
	f.saved[listing.ListingID] = listing
	f.images[listing.ListingID] = images
	return nil
}

func (f *fakeListingStore) GetByListingID(ctx context.Context, listingID string) (*listingdomain.Listing, error) {
	listing, ok := f.saved[listingID]
	if !ok {
		return nil, listingdomain.ErrListingNotFound
	}
	return listing, nil
}

func (f *fakeListingStore) UpdateStatus(ctx context.Context, listingID string, from, to listingdomain.ListingStatus) (bool, error) {
	listing, ok := f.saved[listingID]
	if !ok || listing.Status != from {
		return false, nil
	}
	listing.Status = to
	return true, nil
}

func (f *fakeListingStore) ListBySubmitter(ctx context.Context, submitterID string, limit int) ([]*listingdomain.Listing, error) {
	return nil, nil
}

func (f *fakeListingStore) WithTx(tx *gorm.DB) listingdomain.ListingRepository { return f }

type fakeEnqueuer struct {
	calls   int
	entryID string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, tx *gorm.DB, listingID string, risk riskdomain.RiskVerdict, mod moderationdomain.ModerationVerdict) (*reviewdomain.QueueEntry, error) {
	f.calls++
	return &reviewdomain.QueueEntry{
		EntryID:   f.entryID,
		ListingID: listingID,
		Priority:  reviewdomain.ComputePriority(mod),
		Status:    reviewdomain.EntryStatusOpen,
	}, nil
}

type fakeVelocity struct {
	calls int
}

func (f *fakeVelocity) Record(ctx context.Context, accountID string) error {
	f.calls++
	return nil
}

type fakeHashStore struct {
	hash string
	err  error
}

func (f *fakeHashStore) ContentHash(ctx context.Context, objectKey string) (string, error) {
	return f.hash, f.err
}

type admitFixture struct {
	svc        *Service
	policy     *fakePolicyLookup
	limiter    *fakeLimiter
	risk       *fakeRiskScorer
	moderation *fakeModerationScorer
	listings   *fakeListingStore
	enqueuer   *fakeEnqueuer
	velocity   *fakeVelocity
	outbox     *fakeOutbox
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []string
}

func (f *fakeOutbox) Append(ctx context.Context, tx *gorm.DB, eventType, aggregateID string, payload interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

func newAdmitFixture() *admitFixture {
	fx := &admitFixture{
		policy: &fakePolicyLookup{policy: &domain.Policy{
			CanUpload:       true,
			DailyLimit:      10,
			MaxListingValue: decimal.NewFromInt(100000),
			BulkAllowed:     false,
		}},
		limiter:    &fakeLimiter{allowed: true},
		risk:       &fakeRiskScorer{verdict: riskdomain.RiskVerdict{Level: riskdomain.RiskLevelLow, Score: 0.1}},
		moderation: &fakeModerationScorer{verdict: moderationdomain.ModerationVerdict{Confidence: 1.0}},
		listings:   newFakeListingStore(),
		enqueuer:   &fakeEnqueuer{entryID: "entry-1"},
		velocity:   &fakeVelocity{},
		outbox:     &fakeOutbox{},
	}
	fx.svc = NewService(
		fx.policy, fx.limiter, fx.risk, fx.moderation,
		fx.listings, fx.enqueuer, fx.velocity,
		&fakeHashStore{hash: "abc"}, fakeTxRunner{}, fx.outbox, nil,
	)
	return fx
}

func validSubmission() listingdomain.Submission {
	return listingdomain.Submission{
		Name:        "maize flour 2kg",
		Price:       decimal.NewFromInt(250),
		Unit:        "bag",
		Category:    "food",
		SubmitterID: "seller-1",
		Channel:     listingdomain.ChannelWeb,
	}
}

func TestAdmitCleanSubmissionAutoApproves(t *testing.T) {
	fx := newAdmitFixture()

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, listingdomain.StatusApproved, result.Status)
	assert.Regexp(t, `^LST-\d+$`, result.ListingID)
	assert.Empty(t, result.QueueEntryID)
	assert.Zero(t, result.EstimatedReviewMinutes)
	assert.Equal(t, 0, fx.enqueuer.calls)
	assert.Equal(t, 1, fx.velocity.calls)
	assert.Contains(t, fx.outbox.events, EventDecided)

	saved := fx.listings.saved[result.ListingID]
	require.NotNil(t, saved)
	assert.Equal(t, listingdomain.StatusApproved, saved.Status)
	assert.False(t, saved.SecurityFlag)
}

func TestAdmitPolicyDeniedSkipsScoring(t *testing.T) {
	fx := newAdmitFixture()
	fx.policy.policy.CanUpload = false
	fx.policy.policy.ReasonIfDenied = "account suspended"

	_, err := fx.svc.Admit(context.Background(), validSubmission())
	require.ErrorIs(t, err, domain.ErrPolicyDenied)
	assert.Contains(t, err.Error(), "account suspended")

	// 策略拒绝短路，不评分、不扣额度、不落库
	assert.Equal(t, 0, fx.risk.calls)
	assert.Equal(t, 0, fx.moderation.calls)
	assert.Equal(t, 0, fx.limiter.calls)
	assert.Empty(t, fx.listings.saved)
	assert.Equal(t, 0, fx.velocity.calls)
}

func TestAdmitPolicyLookupFailureIsHardError(t *testing.T) {
	fx := newAdmitFixture()
	fx.policy.policy = nil
	fx.policy.err = errors.New("upstream timeout")

	_, err := fx.svc.Admit(context.Background(), validSubmission())
	require.Error(t, err)
	assert.Equal(t, 0, fx.risk.calls)
}

func TestAdmitDailyLimitExceeded(t *testing.T) {
	fx := newAdmitFixture()
	fx.limiter.allowed = false

	_, err := fx.svc.Admit(context.Background(), validSubmission())
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	assert.Equal(t, "admission:daily:seller-1", fx.limiter.lastKey)
	assert.Equal(t, 0, fx.risk.calls)
	assert.Empty(t, fx.listings.saved)
}

func TestAdmitBatchRequiresBulkPermission(t *testing.T) {
	fx := newAdmitFixture()
	sub := validSubmission()
	sub.Channel = listingdomain.ChannelBatch

	_, err := fx.svc.Admit(context.Background(), sub)
	require.ErrorIs(t, err, domain.ErrBulkNotAllowed)

	fx.policy.policy.BulkAllowed = true
	result, err := fx.svc.Admit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, listingdomain.StatusApproved, result.Status)
	assert.Equal(t, "admission:bulk:seller-1", fx.limiter.lastKey)
}

func TestAdmitSecurityBlock(t *testing.T) {
	fx := newAdmitFixture()
	fx.risk.verdict = riskdomain.RiskVerdict{
		Level:   riskdomain.RiskLevelHigh,
		Score:   0.8,
		Reasons: []string{"duplicate images detected"},
		Block:   true,
	}

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.ErrorIs(t, err, domain.ErrSecurityBlock)
	assert.Nil(t, result)

	// 拦截落库但绝不入队
	assert.Equal(t, 0, fx.enqueuer.calls)
	assert.Contains(t, fx.outbox.events, EventSecurityBlock)
	assert.NotContains(t, fx.outbox.events, EventDecided)
	require.Len(t, fx.listings.saved, 1)
	for _, listing := range fx.listings.saved {
		assert.Equal(t, listingdomain.StatusRejected, listing.Status)
		assert.True(t, listing.SecurityFlag)
	}
	assert.Equal(t, 1, fx.velocity.calls)
}

func TestAdmitFlaggedIssuesGoToReview(t *testing.T) {
	fx := newAdmitFixture()
	fx.moderation.verdict = moderationdomain.ModerationVerdict{
		Confidence:    0.7,
		FlaggedIssues: []moderationdomain.Issue{moderationdomain.IssuePriceDeviation},
	}

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, listingdomain.StatusPending, result.Status)
	assert.Equal(t, "entry-1", result.QueueEntryID)
	assert.Equal(t, 40, result.EstimatedReviewMinutes)
	assert.Equal(t, 1, fx.enqueuer.calls)
}

func TestAdmitConfidenceAtThresholdStaysPending(t *testing.T) {
	fx := newAdmitFixture()
	fx.moderation.verdict = moderationdomain.ModerationVerdict{Confidence: moderationdomain.AutoApproveThreshold}

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)

	// 自动上架要求严格大于阈值
	assert.Equal(t, listingdomain.StatusPending, result.Status)
	assert.Equal(t, 1, fx.enqueuer.calls)
}

func TestAdmitHighValueHalvesEstimate(t *testing.T) {
	fx := newAdmitFixture()
	fx.policy.policy.MaxListingValue = decimal.NewFromInt(100)

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, listingdomain.StatusPending, result.Status)
	assert.Equal(t, 15, result.EstimatedReviewMinutes)
}

func TestAdmitDegradedEngineEmitsAlert(t *testing.T) {
	fx := newAdmitFixture()
	fx.moderation.verdict = moderationdomain.ModerationVerdict{
		Confidence:    moderationdomain.DegradedConfidence,
		FlaggedIssues: []moderationdomain.Issue{moderationdomain.IssueAnalysisDegraded},
	}

	result, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, listingdomain.StatusPending, result.Status)
	assert.Contains(t, fx.outbox.events, EventEngineDegraded)
}

func TestAdmitInvalidSubmission(t *testing.T) {
	fx := newAdmitFixture()
	sub := validSubmission()
	sub.Price = decimal.NewFromInt(-1)

	_, err := fx.svc.Admit(context.Background(), sub)
	assert.ErrorIs(t, err, listingdomain.ErrInvalidSubmission)
	assert.Equal(t, 0, fx.limiter.calls)
}

func TestAdmitZeroDailyLimitSkipsQuota(t *testing.T) {
	fx := newAdmitFixture()
	fx.policy.policy.DailyLimit = 0

	_, err := fx.svc.Admit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, 0, fx.limiter.calls)
}

func TestAdmitImageHashingFailureDoesNotBlock(t *testing.T) {
	fx := newAdmitFixture()
	fx.svc = NewService(
		fx.policy, fx.limiter, fx.risk, fx.moderation,
		fx.listings, fx.enqueuer, fx.velocity,
		&fakeHashStore{err: errors.New("object store down")}, fakeTxRunner{}, fx.outbox, nil,
	)
	sub := validSubmission()
	sub.Images = []listingdomain.ImageRef{{ObjectKey: "img/1.jpg"}}

	result, err := fx.svc.Admit(context.Background(), sub)
	require.NoError(t, err)

	images := fx.listings.images[result.ListingID]
	require.Len(t, images, 1)
	assert.Empty(t, images[0].Hash)
}
