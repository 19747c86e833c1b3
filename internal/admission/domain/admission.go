// 包 准入领域模型：策略、准入结果与审核耗时估算
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	moderationdomain "github.com/wyfcoding/marketplace/internal/moderation/domain"
	riskdomain "github.com/wyfcoding/marketplace/internal/risk/domain"
)

var (
	// ErrPolicyDenied 账号策略拒绝，原样透出给提交方，不自动重试
	ErrPolicyDenied = errors.New("policy denied")
	// ErrSecurityBlock 风控拦截，对外只给出笼统提示
	ErrSecurityBlock = errors.New("blocked by security policy")
	// ErrLimitExceeded 当日上传额度用尽
	ErrLimitExceeded = errors.New("daily upload limit exceeded")
	// ErrBulkNotAllowed 账号无批量上传权限
	ErrBulkNotAllowed = errors.New("bulk upload not allowed")
)

// Policy 账号上传策略，由身份/角色协作方查询得到
type Policy struct {
	CanUpload       bool            `json:"can_upload"`
	ReasonIfDenied  string          `json:"reason_if_denied,omitempty"`
	DailyLimit      int             `json:"daily_limit"`
	MaxListingValue decimal.Decimal `json:"max_listing_value"`
	MandatoryReview bool            `json:"mandatory_review"`
	BulkAllowed     bool            `json:"bulk_allowed"`
}

// PolicyLookup 账号策略查询
type PolicyLookup interface {
	PolicyFor(ctx context.Context, accountID string) (*Policy, error)
}

// Result 单次准入决策的结果
type Result struct {
	ListingID              string                             `json:"listing_id"`
	Status                 listingdomain.ListingStatus        `json:"status"`
	Risk                   riskdomain.RiskVerdict             `json:"risk"`
	Moderation             moderationdomain.ModerationVerdict `json:"moderation"`
	QueueEntryID           string                             `json:"queue_entry_id,omitempty"`
	EstimatedReviewMinutes int                                `json:"estimated_review_minutes,omitempty"`
}

// 审核耗时估算参数
const (
	reviewBaseMinutes     = 30
	reviewPerIssueMinutes = 10
)

// EstimateReviewMinutes 人工审核耗时估算，仅作提示。
// 高价值商品优先处理，估算值减半。
func EstimateReviewMinutes(issueCount int, highValue bool) int {
	minutes := reviewBaseMinutes + reviewPerIssueMinutes*issueCount
	if highValue {
		minutes /= 2
	}
	return minutes
}

// ReviewRequired 人工审核触发条件，纯 OR，任一命中即强制审核
func ReviewRequired(policy *Policy, sub listingdomain.Submission, mod moderationdomain.ModerationVerdict) bool {
	if policy.MandatoryReview {
		return true
	}
	if sub.Price.GreaterThan(policy.MaxListingValue) {
		return true
	}
	if len(mod.FlaggedIssues) > 0 {
		return true
	}
	if mod.Confidence < moderationdomain.AutoApproveThreshold {
		return true
	}
	if sub.CulturalTag != "" {
		return true
	}
	return false
}
