package mysql

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceHistoryRepositoryImpl 已通过商品的可比价格查询
type PriceHistoryRepositoryImpl struct {
	db *gorm.DB
}

// NewPriceHistoryRepository 创建仓储
func NewPriceHistoryRepository(db *gorm.DB) *PriceHistoryRepositoryImpl {
	return &PriceHistoryRepositoryImpl{db: db}
}

// MedianApprovedPrice 窗口内同品类同单位已通过商品的中位价与可比数量。
// MySQL 无中位数聚合，取回价格列在内存中计算。
func (r *PriceHistoryRepositoryImpl) MedianApprovedPrice(ctx context.Context, category, unit string, window time.Duration) (decimal.Decimal, int, error) {
	since := time.Now().Add(-window)

	var prices []decimal.Decimal
	err := r.db.WithContext(ctx).
		Table("listings").
		Where("category = ? AND unit = ? AND status = ? AND created_at >= ?",
			category, unit, "APPROVED", since).
		Order("price ASC").
		Pluck("price", &prices).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	if len(prices) == 0 {
		return decimal.Zero, 0, nil
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	mid := len(prices) / 2
	median := prices[mid]
	if len(prices)%2 == 0 {
		median = prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2))
	}
	return median, len(prices), nil
}
