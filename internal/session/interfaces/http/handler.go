package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/pkg/response"

	admissiondomain "github.com/wyfcoding/marketplace/internal/admission/domain"
	"github.com/wyfcoding/marketplace/internal/session/application"
	"github.com/wyfcoding/marketplace/internal/session/domain"
)

// SessionHandler 文本菜单会话渠道的 HTTP 接口。
// 网关把短信/USSD 输入翻译为这里的开启与单步交互调用。
type SessionHandler struct {
	manager *application.Manager
}

// NewSessionHandler 创建处理器
func NewSessionHandler(manager *application.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// RegisterRoutes 注册路由
func (h *SessionHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/sessions")
	{
		api.POST("", h.StartSession)
		api.POST("/:session_id/input", h.Input)
		api.DELETE("/:session_id", h.Abort)
	}
}

type startSessionRequest struct {
	Phone string `json:"phone" binding:"required"`
	Kind  string `json:"kind"`
}

type startSessionResponse struct {
	SessionID string       `json:"session_id"`
	State     domain.State `json:"state"`
	Prompt    string       `json:"prompt"`
	Challenge string       `json:"challenge"`
}

// StartSession 开启会话并下发验证码挑战
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	kind := domain.KindSubmit
	if req.Kind == string(domain.KindAdmin) {
		kind = domain.KindAdmin
	}

	result, challenge, err := h.manager.Start(c.Request.Context(), req.Phone, kind)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExists) {
			response.ErrorWithStatus(c, http.StatusConflict, "phone already has an active session", "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to start session", "")
		return
	}
	response.Success(c, startSessionResponse{
		SessionID: result.SessionID,
		State:     result.State,
		Prompt:    result.Prompt,
		Challenge: challenge,
	})
}

type inputRequest struct {
	Input string `json:"input"`
}

// Input 推进会话一步
func (h *SessionHandler) Input(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request: "+err.Error(), "")
		return
	}

	result, err := h.manager.Input(c.Request.Context(), c.Param("session_id"), req.Input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, "session not found or expired", "")
		case errors.Is(err, domain.ErrCaptchaFailed):
			response.ErrorWithStatus(c, http.StatusForbidden, "captcha attempts exhausted", "")
		case errors.Is(err, domain.ErrInvalidInput):
			// 非法输入不终止会话，连同当前提示一起回给网关
			response.Success(c, result)
		case errors.Is(err, admissiondomain.ErrPolicyDenied),
			errors.Is(err, admissiondomain.ErrLimitExceeded):
			response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
		case errors.Is(err, admissiondomain.ErrSecurityBlock):
			response.ErrorWithStatus(c, http.StatusForbidden, "upload blocked", "")
		default:
			response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to process input", "")
		}
		return
	}
	response.Success(c, result)
}

// Abort 放弃会话
func (h *SessionHandler) Abort(c *gin.Context) {
	if err := h.manager.Abort(c.Request.Context(), c.Param("session_id")); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "session not found or expired", "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, "failed to abort session", "")
		return
	}
	response.Success(c, gin.H{"session_id": c.Param("session_id")})
}
