// 包 账号风控领域模型：欺诈风险信号、权重与裁决
package domain

import (
	"time"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// 风险分级阈值
const (
	MediumThreshold = 0.4
	HighThreshold   = 0.7
)

// 信号权重，总和为 1.0
const (
	WeightIdentityAge    = 0.20
	WeightPaymentHistory = 0.15
	WeightPriorReports   = 0.20
	WeightUploadVelocity = 0.10
	WeightDuplicateImage = 0.15
	WeightLocation       = 0.10
	WeightBehavior       = 0.05
	WeightNetwork        = 0.05
)

// 信号阈值
const (
	// MinIdentityAgeDays 账号最低注册天数
	MinIdentityAgeDays = 90
	// MinPaymentMonths 最低支付历史月数
	MinPaymentMonths = 3
	// ReportCountCeiling 既往实锤举报数达到该值时贡献满权重
	ReportCountCeiling = 3
	// DailyUploadCeiling 当日上传超过该值开始计入风险
	DailyUploadCeiling = 8
	// NetworkFanoutCeiling 同一网络指纹的账号数超过该值开始计入风险
	NetworkFanoutCeiling = 5
	// RegularIntervalStdDev 上传间隔标准差低于该值视为机械性规律行为
	RegularIntervalStdDev = 60 * time.Second
	// RegularIntervalMinUploads 规律性判定所需的最少上传次数
	RegularIntervalMinUploads = 5
)

// RiskVerdict 风险裁决
type RiskVerdict struct {
	Level   RiskLevel `json:"risk_level"`
	Score   float64   `json:"risk_score"`
	Reasons []string  `json:"reasons,omitempty"`
	Block   bool      `json:"block"`
}

// BucketLevel 将分值按固定阈值分级
func BucketLevel(score float64) RiskLevel {
	switch {
	case score >= HighThreshold:
		return RiskLevelHigh
	case score >= MediumThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// NewVerdict 构造裁决，block 当且仅当等级为 high
func NewVerdict(score float64, reasons []string) RiskVerdict {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	level := BucketLevel(score)
	return RiskVerdict{
		Level:   level,
		Score:   score,
		Reasons: reasons,
		Block:   level == RiskLevelHigh,
	}
}

// ConservativeDefault 引擎整体失败时的保守默认：偏向人工审核而非自动拒绝
func ConservativeDefault() RiskVerdict {
	return RiskVerdict{
		Level:   RiskLevelMedium,
		Score:   0.5,
		Reasons: []string{"system error"},
		Block:   false,
	}
}

// AccountProfile 账号画像（读侧）
type AccountProfile struct {
	AccountID            string
	RegisteredAt         time.Time
	PaymentHistoryMonths int
	NetworkFingerprint   string
}

// LocationPoint 历史定位点
type LocationPoint struct {
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

// RiskProfile 单次评分的临时信号集合，只活在一次调用内，从不落库
type RiskProfile struct {
	IdentityAgeDays  float64
	PaymentMonths    int
	ConfirmedReports int
	UploadsToday     int
	DuplicateImage   bool
	LocationScore    float64
	BehaviorRegular  bool
	NetworkFanout    int
}
