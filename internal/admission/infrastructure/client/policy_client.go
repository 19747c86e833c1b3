package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/marketplace/internal/admission/domain"
	"github.com/wyfcoding/marketplace/pkg/utils"
)

// PolicyClient 身份/角色服务的 HTTP 适配器，查询账号上传策略
type PolicyClient struct {
	baseURL string
	client  *http.Client
}

// NewPolicyClient 创建客户端
func NewPolicyClient(baseURL string, timeout time.Duration) *PolicyClient {
	return &PolicyClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type policyResponse struct {
	CanUpload       bool            `json:"can_upload"`
	ReasonIfDenied  string          `json:"reason_if_denied,omitempty"`
	DailyLimit      int             `json:"daily_limit"`
	MaxListingValue decimal.Decimal `json:"max_listing_value"`
	MandatoryReview bool            `json:"mandatory_review"`
	BulkAllowed     bool            `json:"bulk_allowed"`
}

// PolicyFor 查询账号的上传策略。策略服务是准入的硬依赖，瞬时失败重试一次。
func (c *PolicyClient) PolicyFor(ctx context.Context, accountID string) (*domain.Policy, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/upload-policy", c.baseURL, accountID)

	var body policyResponse
	err := utils.Retry(ctx, 2, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("policy service request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("policy service returned status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode policy response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.Policy{
		CanUpload:       body.CanUpload,
		ReasonIfDenied:  body.ReasonIfDenied,
		DailyLimit:      body.DailyLimit,
		MaxListingValue: body.MaxListingValue,
		MandatoryReview: body.MandatoryReview,
		BulkAllowed:     body.BulkAllowed,
	}, nil
}
