package messaging

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/mq"
)

// OutboxStatus 发件箱消息状态
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
)

// OutboxMessage 准入域发件箱消息，与准入决策同事务落库
type OutboxMessage struct {
	gorm.Model
	EventType   string       `gorm:"column:event_type;type:varchar(50);not null" json:"event_type"`
	AggregateID string       `gorm:"column:aggregate_id;type:varchar(36);index;not null" json:"aggregate_id"`
	Payload     string       `gorm:"column:payload;type:text;not null" json:"payload"`
	Status      OutboxStatus `gorm:"column:status;type:varchar(10);index;not null" json:"status"`
	SentAt      *time.Time   `gorm:"column:sent_at" json:"sent_at,omitempty"`
}

// TableName 指定表名
func (OutboxMessage) TableName() string { return "admission_outbox_messages" }

// OutboxRepository 发件箱仓储
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建仓储
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append 在调用方事务内追加一条待发消息
func (r *OutboxRepository) Append(ctx context.Context, tx *gorm.DB, eventType, aggregateID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := &OutboxMessage{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(data),
		Status:      OutboxStatusPending,
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// FetchPending 取出一批待发消息
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*OutboxMessage, error) {
	var msgs []*OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkSent 标记消息已投递
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": OutboxStatusSent, "sent_at": now}).Error
}

// OutboxRelay 发件箱中继，周期性将待发消息投递到 Kafka
type OutboxRelay struct {
	repo     *OutboxRepository
	producer *mq.KafkaProducer
	topic    string
	interval time.Duration
	batch    int
}

// NewOutboxRelay 创建中继
func NewOutboxRelay(repo *OutboxRepository, producer *mq.KafkaProducer, topic string) *OutboxRelay {
	return &OutboxRelay{
		repo:     repo,
		producer: producer,
		topic:    topic,
		interval: 2 * time.Second,
		batch:    100,
	}
}

// Run 启动中继循环，ctx 取消后退出
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *OutboxRelay) drain(ctx context.Context) {
	msgs, err := r.repo.FetchPending(ctx, r.batch)
	if err != nil {
		logger.Error(ctx, "Failed to fetch pending outbox messages", "error", err)
		return
	}
	for _, msg := range msgs {
		if err := r.producer.SendRaw(ctx, r.topic, msg.AggregateID, []byte(msg.Payload)); err != nil {
			logger.Error(ctx, "Failed to relay outbox message", "id", msg.ID, "event_type", msg.EventType, "error", err)
			return
		}
		if err := r.repo.MarkSent(ctx, msg.ID); err != nil {
			logger.Error(ctx, "Failed to mark outbox message sent", "id", msg.ID, "error", err)
			return
		}
	}
}
