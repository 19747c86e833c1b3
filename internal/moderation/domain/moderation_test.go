package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPenaltyValues(t *testing.T) {
	assert.Equal(t, 0.3, Penalty(IssuePriceDeviation))
	assert.Equal(t, 0.4, Penalty(IssueNonProductImage))
	assert.Equal(t, 0.3, Penalty(IssueImageMismatch))
	assert.Equal(t, 0.5, Penalty(IssueProhibitedText))
	assert.Equal(t, 0.2, Penalty(IssueScriptViolation))
	assert.Equal(t, 0.2, Penalty(IssueNegativeSentiment))
	assert.Equal(t, 0.0, Penalty(IssueAnalysisDegraded))
}

func TestIsFraudMarker(t *testing.T) {
	assert.True(t, IsFraudMarker(IssueProhibitedText))
	assert.False(t, IsFraudMarker(IssuePriceDeviation))
	assert.False(t, IsFraudMarker(IssueNonProductImage))
	assert.False(t, IsFraudMarker(IssueAnalysisDegraded))
}

func TestComputeConfidence(t *testing.T) {
	assert.Equal(t, 1.0, ComputeConfidence(nil))
	assert.InDelta(t, 0.7, ComputeConfidence([]Issue{IssuePriceDeviation}), 0.0001)
	assert.InDelta(t, 0.3, ComputeConfidence([]Issue{IssuePriceDeviation, IssueNonProductImage}), 0.0001)
	// 下限 0，不出现负置信度
	assert.Equal(t, 0.0, ComputeConfidence([]Issue{
		IssueProhibitedText, IssueNonProductImage, IssuePriceDeviation,
	}))
}

func TestComputeConfidenceMonotonic(t *testing.T) {
	issues := []Issue{}
	prev := ComputeConfidence(issues)
	for _, issue := range []Issue{IssueScriptViolation, IssueNegativeSentiment, IssuePriceDeviation} {
		issues = append(issues, issue)
		current := ComputeConfidence(issues)
		assert.LessOrEqual(t, current, prev)
		prev = current
	}
}

func TestHasFraudMarker(t *testing.T) {
	clean := ModerationVerdict{FlaggedIssues: []Issue{IssuePriceDeviation}}
	assert.False(t, clean.HasFraudMarker())

	flagged := ModerationVerdict{FlaggedIssues: []Issue{IssuePriceDeviation, IssueProhibitedText}}
	assert.True(t, flagged.HasFraudMarker())
}

func TestFindProhibitedTerms(t *testing.T) {
	found := FindProhibitedTerms("Brand new FIREARM for sale, pembe za ndovu included")
	assert.Contains(t, found, "firearm")
	assert.Contains(t, found, "pembe za ndovu")

	assert.Empty(t, FindProhibitedTerms("fresh maize flour, 2kg bags"))
}

func TestScriptAllowed(t *testing.T) {
	assert.True(t, ScriptAllowed("Mchele safi, 50% discount! Call +254-700-000000"))
	assert.True(t, ScriptAllowed(""))
	assert.False(t, ScriptAllowed("смотри сюда"))
	assert.False(t, ScriptAllowed("maize 大米"))
}

func TestSentimentDelta(t *testing.T) {
	assert.Positive(t, SentimentDelta("fresh organic produce, safi kabisa"))
	assert.Negative(t, SentimentDelta("expired and rotten stock"))
	assert.Equal(t, 0, SentimentDelta("maize flour"))
}

func TestStronglyNegative(t *testing.T) {
	assert.False(t, StronglyNegative(0))
	assert.False(t, StronglyNegative(-1))
	assert.True(t, StronglyNegative(-2))
	assert.True(t, StronglyNegative(-5))
}
