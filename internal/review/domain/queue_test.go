package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
)

func TestComputePriorityFraudMarkerIsHigh(t *testing.T) {
	verdict := moderationdomain.ModerationVerdict{
		Confidence:    0.9,
		FlaggedIssues: []moderationdomain.Issue{moderationdomain.IssueProhibitedText},
	}
	assert.Equal(t, PriorityHigh, ComputePriority(verdict))
}

func TestComputePriorityLowConfidenceIsHigh(t *testing.T) {
	verdict := moderationdomain.ModerationVerdict{Confidence: 0.49}
	assert.Equal(t, PriorityHigh, ComputePriority(verdict))

	// 边界值 0.5 不触发
	verdict = moderationdomain.ModerationVerdict{Confidence: 0.5}
	assert.Equal(t, PriorityLow, ComputePriority(verdict))
}

func TestComputePriorityManyIssuesIsMedium(t *testing.T) {
	verdict := moderationdomain.ModerationVerdict{
		Confidence: 0.6,
		FlaggedIssues: []moderationdomain.Issue{
			moderationdomain.IssuePriceDeviation,
			moderationdomain.IssueImageMismatch,
			moderationdomain.IssueNegativeSentiment,
		},
	}
	assert.Equal(t, PriorityMedium, ComputePriority(verdict))

	// 恰好 2 个问题不触发 medium
	verdict.FlaggedIssues = verdict.FlaggedIssues[:2]
	assert.Equal(t, PriorityLow, ComputePriority(verdict))
}
