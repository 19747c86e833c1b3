package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/risk/domain"
)

type fakeHistory struct {
	profile    *domain.AccountProfile
	profileErr error

	reports    int
	reportsErr error

	uploadTimes []time.Time
	uploadErr   error

	locations []domain.LocationPoint
	locErr    error

	networkCount int
	networkErr   error
}

func (f *fakeHistory) GetProfile(ctx context.Context, accountID string) (*domain.AccountProfile, error) {
	return f.profile, f.profileErr
}

func (f *fakeHistory) CountConfirmedReports(ctx context.Context, accountID string) (int, error) {
	return f.reports, f.reportsErr
}

func (f *fakeHistory) RecentUploadTimes(ctx context.Context, accountID string, since time.Time) ([]time.Time, error) {
	return f.uploadTimes, f.uploadErr
}

func (f *fakeHistory) RecentLocations(ctx context.Context, accountID string, limit int) ([]domain.LocationPoint, error) {
	return f.locations, f.locErr
}

func (f *fakeHistory) CountAccountsOnNetwork(ctx context.Context, fingerprint string) (int, error) {
	return f.networkCount, f.networkErr
}

type fakeVelocity struct {
	count int
	err   error
}

func (f *fakeVelocity) UploadsToday(ctx context.Context, accountID string) (int, error) {
	return f.count, f.err
}

type fakeHashIndex struct {
	exists bool
	err    error
}

func (f *fakeHashIndex) Exists(ctx context.Context, hash string) (bool, error) {
	return f.exists, f.err
}

type fakeImageStore struct {
	hash string
	err  error
}

func (f *fakeImageStore) ContentHash(ctx context.Context, objectKey string) (string, error) {
	return f.hash, f.err
}

func baseSubmission(now time.Time) listingdomain.Submission {
	return listingdomain.Submission{
		Name:        "maize flour",
		Price:       decimal.NewFromInt(120),
		Unit:        "kg",
		Category:    "grains",
		SubmitterID: "acct-1",
		Channel:     listingdomain.ChannelWeb,
		SubmittedAt: now,
	}
}

func TestScoreYoungAccountWithoutPaymentHistory(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:            "acct-1",
			RegisteredAt:         now.Add(-10 * 24 * time.Hour),
			PaymentHistoryMonths: 0,
		},
	}
	scorer := NewScorer(history, &fakeVelocity{}, &fakeHashIndex{}, &fakeImageStore{}, time.Second, nil)

	verdict := scorer.Score(context.Background(), baseSubmission(now))

	// 0.20*(1-10/90) + 0.15*(1-0/3) = 0.3278
	assert.InDelta(t, 0.3278, verdict.Score, 0.001)
	assert.Equal(t, domain.RiskLevelLow, verdict.Level)
	assert.False(t, verdict.Block)
	assert.Len(t, verdict.Reasons, 2)
}

func TestScoreEstablishedCleanAccount(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:            "acct-1",
			RegisteredAt:         now.Add(-2 * 365 * 24 * time.Hour),
			PaymentHistoryMonths: 12,
		},
	}
	scorer := NewScorer(history, &fakeVelocity{count: 2}, &fakeHashIndex{}, &fakeImageStore{}, time.Second, nil)

	verdict := scorer.Score(context.Background(), baseSubmission(now))

	assert.Equal(t, 0.0, verdict.Score)
	assert.Equal(t, domain.RiskLevelLow, verdict.Level)
	assert.False(t, verdict.Block)
	assert.Empty(t, verdict.Reasons)
}

func TestScoreHighRiskBlocks(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:            "acct-1",
			RegisteredAt:         now,
			PaymentHistoryMonths: 0,
		},
		reports: 3,
	}
	scorer := NewScorer(history, &fakeVelocity{}, &fakeHashIndex{exists: true}, &fakeImageStore{hash: "abc"}, time.Second, nil)

	sub := baseSubmission(now)
	sub.Images = []listingdomain.ImageRef{{ObjectKey: "img/1.jpg"}}

	verdict := scorer.Score(context.Background(), sub)

	// 0.20 + 0.15 + 0.20 + 0.15 = 0.70
	assert.InDelta(t, 0.70, verdict.Score, 0.001)
	assert.Equal(t, domain.RiskLevelHigh, verdict.Level)
	assert.True(t, verdict.Block)
}

func TestScoreSingleSignalFailureIsNeutral(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:            "acct-1",
			RegisteredAt:         now.Add(-365 * 24 * time.Hour),
			PaymentHistoryMonths: 12,
		},
	}
	scorer := NewScorer(history, &fakeVelocity{err: errors.New("redis down")}, &fakeHashIndex{}, &fakeImageStore{}, time.Second, nil)

	verdict := scorer.Score(context.Background(), baseSubmission(now))

	assert.Equal(t, 0.0, verdict.Score)
	assert.Equal(t, domain.RiskLevelLow, verdict.Level)
	assert.False(t, verdict.Block)
}

func TestScoreAllSignalsFailedReturnsConservativeDefault(t *testing.T) {
	now := time.Now()
	boom := errors.New("store down")
	history := &fakeHistory{
		profileErr: boom,
		reportsErr: boom,
		uploadErr:  boom,
		locErr:     boom,
	}
	scorer := NewScorer(history, &fakeVelocity{err: boom}, &fakeHashIndex{err: boom}, &fakeImageStore{err: boom}, time.Second, nil)

	sub := baseSubmission(now)
	sub.Images = []listingdomain.ImageRef{{ObjectKey: "img/1.jpg"}}
	sub.Location = &listingdomain.GeoPoint{Lat: -1.28, Lng: 36.81}

	verdict := scorer.Score(context.Background(), sub)

	assert.Equal(t, domain.ConservativeDefault(), verdict)
}

func TestScoreTotalFailureWithoutImagesOrLocationStillConservative(t *testing.T) {
	now := time.Now()
	boom := errors.New("store down")
	history := &fakeHistory{
		profileErr: boom,
		reportsErr: boom,
		uploadErr:  boom,
		locErr:     boom,
	}
	scorer := NewScorer(history, &fakeVelocity{err: boom}, &fakeHashIndex{err: boom}, &fakeImageStore{err: boom}, time.Second, nil)

	// 无图无位置的提交只尝试 6 个信号，全挂同样必须退化为保守默认
	verdict := scorer.Score(context.Background(), baseSubmission(now))

	assert.Equal(t, domain.ConservativeDefault(), verdict)
}

func TestScoreZeroHistoryAccountDoesNotPanic(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:    "acct-new",
			RegisteredAt: now,
		},
	}
	scorer := NewScorer(history, &fakeVelocity{}, &fakeHashIndex{}, &fakeImageStore{}, time.Second, nil)

	sub := baseSubmission(now)
	sub.Location = &listingdomain.GeoPoint{Lat: -1.28, Lng: 36.81}

	verdict := scorer.Score(context.Background(), sub)

	// 年龄与支付历史两项满贡献，0.35，其余中性
	assert.InDelta(t, 0.35, verdict.Score, 0.001)
	assert.False(t, verdict.Block)
}

func TestScoreIsDeterministicForSameInput(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{
		profile: &domain.AccountProfile{
			AccountID:            "acct-1",
			RegisteredAt:         now.Add(-10 * 24 * time.Hour),
			PaymentHistoryMonths: 1,
		},
		reports: 1,
	}
	scorer := NewScorer(history, &fakeVelocity{count: 2}, &fakeHashIndex{}, &fakeImageStore{hash: "abc"}, time.Second, nil)

	sub := baseSubmission(now)
	first := scorer.Score(context.Background(), sub)
	second := scorer.Score(context.Background(), sub)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Block, second.Block)
	assert.ElementsMatch(t, first.Reasons, second.Reasons)
}
