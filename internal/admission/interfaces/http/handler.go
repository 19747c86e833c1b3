package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/marketplace/internal/admission/application"
	"github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
)

// AdmissionHandler 商品提交准入的 HTTP 接口
type AdmissionHandler struct {
	svc         *application.Service
	listingRepo listingdomain.ListingRepository
}

// NewAdmissionHandler 创建处理器
func NewAdmissionHandler(svc *application.Service, listingRepo listingdomain.ListingRepository) *AdmissionHandler {
	return &AdmissionHandler{svc: svc, listingRepo: listingRepo}
}

// RegisterRoutes 注册路由
func (h *AdmissionHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/listings", h.SubmitListing)
		api.GET("/listings/:listing_id", h.GetListing)
		api.GET("/accounts/:account_id/listings", h.ListByAccount)
	}
}

type imageRefRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
	URL       string `json:"url"`
}

type geoPointRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

type submitListingRequest struct {
	Name        string            `json:"name" binding:"required"`
	Price       decimal.Decimal   `json:"price" binding:"required"`
	Unit        string            `json:"unit" binding:"required"`
	Category    string            `json:"category" binding:"required"`
	Description string            `json:"description"`
	Images      []imageRefRequest `json:"images"`
	SubmitterID string            `json:"submitter_id" binding:"required"`
	Location    *geoPointRequest  `json:"location"`
	Channel     string            `json:"channel"`
	CulturalTag string            `json:"cultural_tag"`
}

func (r submitListingRequest) toSubmission() listingdomain.Submission {
	sub := listingdomain.Submission{
		Name:        r.Name,
		Price:       r.Price,
		Unit:        r.Unit,
		Category:    r.Category,
		Description: r.Description,
		SubmitterID: r.SubmitterID,
		Channel:     listingdomain.Channel(r.Channel),
		CulturalTag: r.CulturalTag,
		SubmittedAt: time.Now(),
	}
	if sub.Channel == "" {
		sub.Channel = listingdomain.ChannelWeb
	}
	for _, img := range r.Images {
		sub.Images = append(sub.Images, listingdomain.ImageRef{ObjectKey: img.ObjectKey, URL: img.URL})
	}
	if r.Location != nil {
		sub.Location = &listingdomain.GeoPoint{Lat: r.Location.Lat, Lng: r.Location.Lng, Accuracy: r.Location.Accuracy}
	}
	return sub
}

// SubmitListing 提交商品并返回准入结果。
// 风控拦截只返回笼统提示，不透出任何拦截原因。
func (h *AdmissionHandler) SubmitListing(c *gin.Context) {
	var req submitListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	result, err := h.svc.Admit(c.Request.Context(), req.toSubmission())
	if err != nil {
		switch {
		case errors.Is(err, listingdomain.ErrInvalidSubmission):
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		case errors.Is(err, domain.ErrPolicyDenied):
			response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
		case errors.Is(err, domain.ErrBulkNotAllowed):
			response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
		case errors.Is(err, domain.ErrLimitExceeded):
			response.ErrorWithStatus(c, http.StatusTooManyRequests, err.Error(), "")
		case errors.Is(err, domain.ErrSecurityBlock):
			response.ErrorWithStatus(c, http.StatusForbidden, "upload blocked", "")
		default:
			response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to process submission", "")
		}
		return
	}
	response.Success(c, result)
}

// GetListing 查询商品
func (h *AdmissionHandler) GetListing(c *gin.Context) {
	listing, err := h.listingRepo.GetByListingID(c.Request.Context(), c.Param("listing_id"))
	if err != nil {
		if errors.Is(err, listingdomain.ErrListingNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "listing not found", "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to get listing", "")
		return
	}
	response.Success(c, listing)
}

// ListByAccount 账号名下的商品列表
func (h *AdmissionHandler) ListByAccount(c *gin.Context) {
	listings, err := h.listingRepo.ListBySubmitter(c.Request.Context(), c.Param("account_id"), 100)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to list listings", "")
		return
	}
	response.Success(c, listings)
}
