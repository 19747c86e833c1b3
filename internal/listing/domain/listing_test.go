package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() Submission {
	return Submission{
		Name:        "maize flour 2kg",
		Price:       decimal.NewFromInt(250),
		Unit:        "bag",
		Category:    "food",
		SubmitterID: "seller-1",
		Channel:     ChannelWeb,
	}
}

func TestSubmissionValidate(t *testing.T) {
	require.NoError(t, validSubmission().Validate())

	mutations := map[string]func(*Submission){
		"empty name":      func(s *Submission) { s.Name = "" },
		"empty unit":      func(s *Submission) { s.Unit = "" },
		"empty category":  func(s *Submission) { s.Category = "" },
		"empty submitter": func(s *Submission) { s.SubmitterID = "" },
		"zero price":      func(s *Submission) { s.Price = decimal.Zero },
		"negative price":  func(s *Submission) { s.Price = decimal.NewFromInt(-10) },
		"unknown channel": func(s *Submission) { s.Channel = Channel("CARRIER_PIGEON") },
		"empty channel":   func(s *Submission) { s.Channel = "" },
	}
	for name, mutate := range mutations {
		sub := validSubmission()
		mutate(&sub)
		assert.ErrorIs(t, sub.Validate(), ErrInvalidSubmission, name)
	}
}

func TestSubmissionValidateAllChannels(t *testing.T) {
	for _, ch := range []Channel{ChannelWeb, ChannelSession, ChannelMessaging, ChannelBatch} {
		sub := validSubmission()
		sub.Channel = ch
		assert.NoError(t, sub.Validate(), string(ch))
	}
}

func TestTransitionPendingIsTheOnlyMutableState(t *testing.T) {
	pending := &Listing{Status: StatusPending}
	assert.True(t, pending.CanTransitionTo(StatusApproved))
	assert.True(t, pending.CanTransitionTo(StatusRejected))
	assert.False(t, pending.CanTransitionTo(StatusPending))

	for _, terminal := range []ListingStatus{StatusApproved, StatusRejected} {
		l := &Listing{Status: terminal}
		assert.False(t, l.CanTransitionTo(StatusApproved), string(terminal))
		assert.False(t, l.CanTransitionTo(StatusRejected), string(terminal))
		assert.False(t, l.CanTransitionTo(StatusPending), string(terminal))
	}
}

func TestTransitionTo(t *testing.T) {
	l := &Listing{Status: StatusPending}
	require.NoError(t, l.TransitionTo(StatusApproved))
	assert.Equal(t, StatusApproved, l.Status)

	// 终态不可再转移
	assert.ErrorIs(t, l.TransitionTo(StatusRejected), ErrInvalidTransition)
	assert.Equal(t, StatusApproved, l.Status)
}
