// 包 内容审核领域模型：审核问题枚举、固定扣分与置信度计算
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
)

// Issue 审核问题，封闭枚举。新增问题种类必须同时扩展 Penalty 与 IsFraudMarker。
type Issue string

const (
	IssuePriceDeviation    Issue = "PRICE_DEVIATION"
	IssueNonProductImage   Issue = "NON_PRODUCT_IMAGE"
	IssueImageMismatch     Issue = "IMAGE_MISMATCH"
	IssueProhibitedText    Issue = "PROHIBITED_TEXT"
	IssueScriptViolation   Issue = "SCRIPT_VIOLATION"
	IssueNegativeSentiment Issue = "NEGATIVE_SENTIMENT"
	IssueAnalysisDegraded  Issue = "ANALYSIS_DEGRADED"
)

// AutoApproveThreshold 自动通过的置信度下限
const AutoApproveThreshold = 0.85

// DegradedConfidence 审核引擎整体失败时的置信度，略低于自动通过线，确保走人工审核
const DegradedConfidence = 0.84

// PriceDeviationThreshold 价格偏离阈值，严格大于才判异常
var PriceDeviationThreshold = decimal.NewFromFloat(0.20)

// Penalty 单问题的固定扣分。扣分制而非加权平均：任何单个严重问题都要
// 压垮置信度，不让其余维度的干净表现稀释它。
func Penalty(issue Issue) float64 {
	switch issue {
	case IssuePriceDeviation:
		return 0.3
	case IssueNonProductImage:
		return 0.4
	case IssueImageMismatch:
		return 0.3
	case IssueProhibitedText:
		return 0.5
	case IssueScriptViolation:
		return 0.2
	case IssueNegativeSentiment:
		return 0.2
	case IssueAnalysisDegraded:
		return 0
	}
	return 0
}

// IsFraudMarker 是否属于欺诈/违禁内容标记（用于队列优先级）
func IsFraudMarker(issue Issue) bool {
	switch issue {
	case IssueProhibitedText:
		return true
	case IssuePriceDeviation, IssueNonProductImage, IssueImageMismatch,
		IssueScriptViolation, IssueNegativeSentiment, IssueAnalysisDegraded:
		return false
	}
	return false
}

// ComputeConfidence 从 1.0 起按问题扣分，下限 0
func ComputeConfidence(issues []Issue) float64 {
	confidence := 1.0
	for _, issue := range issues {
		confidence -= Penalty(issue)
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// PriceAnalysis 价格分析结果
type PriceAnalysis struct {
	Median      decimal.Decimal `json:"median"`
	Deviation   decimal.Decimal `json:"deviation"`
	Comparables int             `json:"comparables"`
	Anomalous   bool            `json:"anomalous"`
}

// ImageClassification 单张图片的识别结果
type ImageClassification struct {
	ObjectKey       string  `json:"object_key"`
	IsProduct       bool    `json:"is_product"`
	MatchesCategory bool    `json:"matches_category"`
	Quality         float64 `json:"quality"`
}

// ImageAnalysis 图片分析结果
type ImageAnalysis struct {
	Classifications []ImageClassification `json:"classifications"`
}

// TextAnalysis 文本分析结果
type TextAnalysis struct {
	ProhibitedTerms []string `json:"prohibited_terms,omitempty"`
	ScriptOK        bool     `json:"script_ok"`
	SentimentDelta  int      `json:"sentiment_delta"`
}

// ModerationVerdict 审核裁决
type ModerationVerdict struct {
	Confidence    float64        `json:"confidence"`
	FlaggedIssues []Issue        `json:"flagged_issues,omitempty"`
	PriceAnalysis *PriceAnalysis `json:"price_analysis,omitempty"`
	ImageAnalysis *ImageAnalysis `json:"image_analysis,omitempty"`
	TextAnalysis  *TextAnalysis  `json:"text_analysis,omitempty"`
}

// HasFraudMarker 是否携带欺诈/违禁标记
func (v ModerationVerdict) HasFraudMarker() bool {
	for _, issue := range v.FlaggedIssues {
		if IsFraudMarker(issue) {
			return true
		}
	}
	return false
}

// PriceHistoryLookup 可比价格查询能力
type PriceHistoryLookup interface {
	// MedianApprovedPrice 同品类同单位、窗口内已通过商品的中位价与可比数量
	MedianApprovedPrice(ctx context.Context, category, unit string, window time.Duration) (decimal.Decimal, int, error)
}

// ImageClassifier 图像识别能力
type ImageClassifier interface {
	Classify(ctx context.Context, ref listingdomain.ImageRef, category, description string) (ImageClassification, error)
}
