package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/pkg/response"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/review/application"
	"github.com/wyfcoding/marketplace/internal/review/domain"
)

// ReviewHandler 审核队列与社区举报的 HTTP 接口
type ReviewHandler struct {
	queueSvc  *application.QueueService
	reportSvc *application.ReportService
}

// NewReviewHandler 创建处理器
func NewReviewHandler(queueSvc *application.QueueService, reportSvc *application.ReportService) *ReviewHandler {
	return &ReviewHandler{queueSvc: queueSvc, reportSvc: reportSvc}
}

// RegisterRoutes 注册路由
func (h *ReviewHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/reports", h.SubmitReport)
		api.GET("/listings/:listing_id/reports", h.ListReports)

		moderation := api.Group("/moderation")
		{
			moderation.GET("/queue", h.ListQueue)
			moderation.GET("/queue/:entry_id", h.GetEntry)
			moderation.POST("/queue/:entry_id/resolve", h.ResolveEntry)
			moderation.POST("/reports/:report_id/validate", h.ValidateReport)
		}
	}
}

type submitReportRequest struct {
	ListingID   string `json:"listing_id" binding:"required"`
	ReporterID  string `json:"reporter_id" binding:"required"`
	ReasonCode  string `json:"reason_code" binding:"required"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

// SubmitReport 提交社区举报
func (h *ReviewHandler) SubmitReport(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	report, err := h.reportSvc.Submit(c.Request.Context(), req.ListingID, req.ReporterID, req.ReasonCode, req.Description, req.Evidence)
	if err != nil {
		if errors.Is(err, listingdomain.ErrListingNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "listing not found", "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to submit report", "")
		return
	}
	response.Success(c, report)
}

// ListReports 商品名下的举报列表
func (h *ReviewHandler) ListReports(c *gin.Context) {
	reports, err := h.reportSvc.ListReports(c.Request.Context(), c.Param("listing_id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to list reports", "")
		return
	}
	response.Success(c, reports)
}

type validateReportRequest struct {
	ModeratorID string `json:"moderator_id" binding:"required"`
	Confirmed   *bool  `json:"confirmed" binding:"required"`
}

// ValidateReport 版主裁决举报
func (h *ReviewHandler) ValidateReport(c *gin.Context) {
	var req validateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	err := h.reportSvc.Validate(c.Request.Context(), c.Param("report_id"), req.ModeratorID, *req.Confirmed)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrReportNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, "report not found", "")
		case errors.Is(err, domain.ErrReportResolved):
			response.ErrorWithStatus(c, http.StatusConflict, "report already resolved", "")
		default:
			response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to validate report", "")
		}
		return
	}
	response.Success(c, gin.H{"report_id": c.Param("report_id"), "confirmed": *req.Confirmed})
}

// ListQueue 按优先级列出开放队列项
func (h *ReviewHandler) ListQueue(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	entries, err := h.queueSvc.ListOpen(c.Request.Context(), limit)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to list queue", "")
		return
	}
	response.Success(c, entries)
}

type entryDetailResponse struct {
	Entry   *domain.QueueEntry        `json:"entry"`
	Reports []*domain.CommunityReport `json:"reports,omitempty"`
}

// GetEntry 查询队列项，附带该商品名下的举报
func (h *ReviewHandler) GetEntry(c *gin.Context) {
	entry, err := h.queueSvc.GetEntry(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		if errors.Is(err, domain.ErrQueueEntryNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "queue entry not found", "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to get queue entry", "")
		return
	}
	reports, err := h.reportSvc.ListReports(c.Request.Context(), entry.ListingID)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to list reports", "")
		return
	}
	response.Success(c, entryDetailResponse{Entry: entry, Reports: reports})
}

type resolveEntryRequest struct {
	ModeratorID string `json:"moderator_id" binding:"required"`
	Approve     *bool  `json:"approve" binding:"required"`
}

// ResolveEntry 版主裁决队列项
func (h *ReviewHandler) ResolveEntry(c *gin.Context) {
	var req resolveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	err := h.queueSvc.Resolve(c.Request.Context(), c.Param("entry_id"), req.ModeratorID, *req.Approve)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueEntryNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, "queue entry not found", "")
		case errors.Is(err, domain.ErrEntryResolved):
			response.ErrorWithStatus(c, http.StatusConflict, "queue entry already resolved", "")
		case errors.Is(err, listingdomain.ErrListingNotPending):
			response.ErrorWithStatus(c, http.StatusConflict, "listing is not pending review", "")
		default:
			response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to resolve queue entry", "")
		}
		return
	}
	response.Success(c, gin.H{"entry_id": c.Param("entry_id"), "approved": *req.Approve})
}
