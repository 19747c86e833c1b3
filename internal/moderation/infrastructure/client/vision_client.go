package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/moderation/domain"
)

// VisionClient 图像识别服务的 HTTP 适配器。
// 生产端点由部署环境提供，本核心只约定请求/响应契约。
type VisionClient struct {
	baseURL string
	client  *http.Client
}

// NewVisionClient 创建客户端
func NewVisionClient(baseURL string, timeout time.Duration) *VisionClient {
	return &VisionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	ObjectKey   string `json:"object_key"`
	URL         string `json:"url,omitempty"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

type classifyResponse struct {
	IsProduct       bool    `json:"is_product"`
	MatchesCategory bool    `json:"matches_category"`
	Quality         float64 `json:"quality"`
}

// Classify 调用识别服务判断图片是否为商品、是否与申报品类一致
func (c *VisionClient) Classify(ctx context.Context, ref listingdomain.ImageRef, category, description string) (domain.ImageClassification, error) {
	payload, err := json.Marshal(classifyRequest{
		ObjectKey:   ref.ObjectKey,
		URL:         ref.URL,
		Category:    category,
		Description: description,
	})
	if err != nil {
		return domain.ImageClassification{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(payload))
	if err != nil {
		return domain.ImageClassification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ImageClassification{}, fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ImageClassification{}, fmt.Errorf("vision service returned status %d", resp.StatusCode)
	}

	var body classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ImageClassification{}, fmt.Errorf("decode vision response: %w", err)
	}

	return domain.ImageClassification{
		ObjectKey:       ref.ObjectKey,
		IsProduct:       body.IsProduct,
		MatchesCategory: body.MatchesCategory,
		Quality:         body.Quality,
	}, nil
}
