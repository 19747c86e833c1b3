package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/marketplace/internal/admission/application"
	"github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/mq"
)

// BatchSubmission 批量导入渠道投递的单条商品
type BatchSubmission struct {
	Name        string                   `json:"name"`
	Price       string                   `json:"price"`
	Unit        string                   `json:"unit"`
	Category    string                   `json:"category"`
	Description string                   `json:"description,omitempty"`
	Images      []listingdomain.ImageRef `json:"images,omitempty"`
	SubmitterID string                   `json:"submitter_id"`
	CulturalTag string                   `json:"cultural_tag,omitempty"`
}

// BatchHandler 批量导入消费者。逐条走完整准入流水线，坏消息进死信。
type BatchHandler struct {
	svc      *application.Service
	consumer *mq.KafkaConsumer
	dlq      *mq.DeadLetterQueue
}

// NewBatchHandler 创建消费者
func NewBatchHandler(svc *application.Service, consumer *mq.KafkaConsumer, dlq *mq.DeadLetterQueue) *BatchHandler {
	return &BatchHandler{svc: svc, consumer: consumer, dlq: dlq}
}

// Run 消费循环，ctx 取消后退出
func (h *BatchHandler) Run(ctx context.Context) error {
	for {
		msg, err := h.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Error(ctx, "Failed to read batch message", "error", err)
			continue
		}
		h.handle(ctx, msg)
	}
}

func (h *BatchHandler) handle(ctx context.Context, msg *mq.Message) {
	var batch BatchSubmission
	if err := msg.UnmarshalPayload(&batch); err != nil {
		h.toDeadLetter(ctx, msg, "malformed batch submission", err)
		return
	}

	sub, err := batch.toSubmission()
	if err != nil {
		h.toDeadLetter(ctx, msg, "invalid batch submission", err)
		return
	}

	result, err := h.svc.Admit(ctx, sub)
	if err != nil {
		// 策略拒绝、限额、风控拦截都是对单条消息的终局裁决，不重试
		switch {
		case errors.Is(err, domain.ErrPolicyDenied),
			errors.Is(err, domain.ErrBulkNotAllowed),
			errors.Is(err, domain.ErrLimitExceeded),
			errors.Is(err, domain.ErrSecurityBlock),
			errors.Is(err, listingdomain.ErrInvalidSubmission):
			logger.Warn(ctx, "Batch submission rejected",
				"submitter_id", batch.SubmitterID, "error", err)
		default:
			h.toDeadLetter(ctx, msg, "admission failed", err)
		}
		return
	}

	logger.Info(ctx, "Batch submission admitted",
		"listing_id", result.ListingID, "submitter_id", batch.SubmitterID, "status", result.Status)
}

func (b BatchSubmission) toSubmission() (listingdomain.Submission, error) {
	price, err := decimal.NewFromString(b.Price)
	if err != nil {
		return listingdomain.Submission{}, err
	}
	return listingdomain.Submission{
		Name:        b.Name,
		Price:       price,
		Unit:        b.Unit,
		Category:    b.Category,
		Description: b.Description,
		Images:      b.Images,
		SubmitterID: b.SubmitterID,
		CulturalTag: b.CulturalTag,
		Channel:     listingdomain.ChannelBatch,
		SubmittedAt: time.Now(),
	}, nil
}

func (h *BatchHandler) toDeadLetter(ctx context.Context, msg *mq.Message, reason string, cause error) {
	logger.Error(ctx, "Batch message sent to dead letter", "reason", reason, "error", cause)
	if err := h.dlq.Send(ctx, msg, reason, cause); err != nil {
		logger.Error(ctx, "Failed to send dead letter", "error", err)
	}
}
