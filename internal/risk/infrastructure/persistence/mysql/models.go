package mysql

import (
	"time"

	"gorm.io/gorm"
)

// Account 账号读模型，由身份服务同步
type Account struct {
	gorm.Model
	AccountID            string    `gorm:"column:account_id;type:varchar(36);uniqueIndex;not null"`
	RegisteredAt         time.Time `gorm:"column:registered_at;not null"`
	PaymentHistoryMonths int       `gorm:"column:payment_history_months;not null;default:0"`
	NetworkFingerprint   string    `gorm:"column:network_fingerprint;type:varchar(64);index"`
}

// TableName 指定表名
func (Account) TableName() string { return "accounts" }

// AccountLocation 账号历史定位点
type AccountLocation struct {
	gorm.Model
	AccountID  string    `gorm:"column:account_id;type:varchar(36);index;not null"`
	Lat        float64   `gorm:"column:lat;type:double;not null"`
	Lng        float64   `gorm:"column:lng;type:double;not null"`
	RecordedAt time.Time `gorm:"column:recorded_at;index;not null"`
}

// TableName 指定表名
func (AccountLocation) TableName() string { return "account_locations" }
