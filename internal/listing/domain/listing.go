// 包 商品发布领域模型：规范化提交、商品实体与生命周期
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrInvalidTransition = errors.New("invalid listing status transition")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrListingNotPending = errors.New("listing is not pending")
)

// ListingStatus 商品状态。created 为流水线内的瞬态，不落库。
type ListingStatus string

const (
	StatusApproved ListingStatus = "APPROVED"
	StatusPending  ListingStatus = "PENDING"
	StatusRejected ListingStatus = "REJECTED"
)

// Channel 提交渠道
type Channel string

const (
	ChannelWeb       Channel = "WEB"
	ChannelSession   Channel = "SESSION"
	ChannelMessaging Channel = "MESSAGING"
	ChannelBatch     Channel = "BATCH"
)

// ImageRef 图片引用，指向对象存储中的原图
type ImageRef struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url,omitempty"`
}

// GeoPoint 地理坐标
type GeoPoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// Submission 规范化的商品提交请求。创建后不可变，流水线只读不改。
type Submission struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Images      []ImageRef      `json:"images,omitempty"`
	SubmitterID string          `json:"submitter_id"`
	Location    *GeoPoint       `json:"location,omitempty"`
	Channel     Channel         `json:"channel"`
	CulturalTag string          `json:"cultural_tag,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Validate 校验提交的基本合法性
func (s Submission) Validate() error {
	if s.Name == "" || s.Unit == "" || s.Category == "" || s.SubmitterID == "" {
		return ErrInvalidSubmission
	}
	if !s.Price.IsPositive() {
		return ErrInvalidSubmission
	}
	switch s.Channel {
	case ChannelWeb, ChannelSession, ChannelMessaging, ChannelBatch:
	default:
		return ErrInvalidSubmission
	}
	return nil
}

// Listing 商品实体
type Listing struct {
	gorm.Model
	ListingID   string          `gorm:"column:listing_id;type:varchar(36);uniqueIndex;not null" json:"listing_id"`
	SubmitterID string          `gorm:"column:submitter_id;type:varchar(36);index;not null" json:"submitter_id"`
	Name        string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(20,8);not null" json:"price"`
	Unit        string          `gorm:"column:unit;type:varchar(20);not null" json:"unit"`
	Category    string          `gorm:"column:category;type:varchar(100);index;not null" json:"category"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Channel     Channel         `gorm:"column:channel;type:varchar(20);not null" json:"channel"`
	CulturalTag string          `gorm:"column:cultural_tag;type:varchar(100)" json:"cultural_tag,omitempty"`
	Status      ListingStatus   `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// SecurityFlag 标记被风控拦截的拒绝，与普通拒绝分开审计
	SecurityFlag bool            `gorm:"column:security_flag;type:boolean;not null;default:false" json:"security_flag"`
	RiskLevel    string          `gorm:"column:risk_level;type:varchar(20)" json:"risk_level"`
	RiskScore    decimal.Decimal `gorm:"column:risk_score;type:decimal(5,4)" json:"risk_score"`
	Confidence   decimal.Decimal `gorm:"column:confidence;type:decimal(5,4)" json:"confidence"`
}

// TableName 指定表名
func (Listing) TableName() string { return "listings" }

// ListingImage 商品图片，hash 用于重复图片的精确匹配
type ListingImage struct {
	gorm.Model
	ListingID string `gorm:"column:listing_id;type:varchar(36);index;not null" json:"listing_id"`
	ObjectKey string `gorm:"column:object_key;type:varchar(255);not null" json:"object_key"`
	Hash      string `gorm:"column:hash;type:varchar(64);index" json:"hash"`
}

// TableName 指定表名
func (ListingImage) TableName() string { return "listing_images" }

// CanTransitionTo 状态机约束：pending 可终结为 approved/rejected，其余不可变
func (l *Listing) CanTransitionTo(target ListingStatus) bool {
	if l.Status == StatusPending && (target == StatusApproved || target == StatusRejected) {
		return true
	}
	return false
}

// TransitionTo 应用状态转移
func (l *Listing) TransitionTo(target ListingStatus) error {
	if !l.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	l.Status = target
	return nil
}
