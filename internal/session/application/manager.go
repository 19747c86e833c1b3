package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/pkg/idgen"

	admissiondomain "github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/session/domain"
	"github.com/wyfcoding/marketplace/pkg/logger"
)

// Admitter 会话完成后的准入入口
type Admitter interface {
	Admit(ctx context.Context, sub listingdomain.Submission) (*admissiondomain.Result, error)
}

// StepResult 单步交互的结果
type StepResult struct {
	SessionID string                  `json:"session_id"`
	State     domain.State            `json:"state"`
	Prompt    string                  `json:"prompt"`
	Done      bool                    `json:"done"`
	Admission *admissiondomain.Result `json:"admission,omitempty"`
}

// Manager 文本菜单会话管理器。
// 会话超时依赖存储层 TTL；每次交互续期，静默超时即会话消失。
type Manager struct {
	repo      domain.SessionRepository
	admitter  Admitter
	submitTTL time.Duration
	adminTTL  time.Duration
}

// NewManager 创建会话管理器
func NewManager(repo domain.SessionRepository, admitter Admitter, submitTTL, adminTTL time.Duration) *Manager {
	if submitTTL <= 0 {
		submitTTL = 5 * time.Minute
	}
	if adminTTL <= 0 {
		adminTTL = 10 * time.Minute
	}
	return &Manager{repo: repo, admitter: admitter, submitTTL: submitTTL, adminTTL: adminTTL}
}

func (m *Manager) ttl(kind domain.Kind) time.Duration {
	if kind == domain.KindAdmin {
		return m.adminTTL
	}
	return m.submitTTL
}

// Start 开启会话并下发验证码挑战。同一手机号存在未结会话时拒绝。
func (m *Manager) Start(ctx context.Context, phone string, kind domain.Kind) (*StepResult, string, error) {
	a, b := rand.Intn(9)+1, rand.Intn(9)+1
	challenge := fmt.Sprintf("What is %d + %d?", a, b)

	now := time.Now()
	session := &domain.Session{
		SessionID:     fmt.Sprintf("SES-%d", idgen.GenID()),
		Phone:         phone,
		Kind:          kind,
		State:         domain.StateCaptcha,
		CaptchaAnswer: strconv.Itoa(a + b),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.repo.Create(ctx, session, m.ttl(kind)); err != nil {
		return nil, "", err
	}

	logger.Info(ctx, "Session started", "session_id", session.SessionID, "kind", kind)
	return &StepResult{
		SessionID: session.SessionID,
		State:     session.State,
		Prompt:    session.Prompt(),
	}, challenge, nil
}

// Input 消费一条用户输入并推进会话
func (m *Manager) Input(ctx context.Context, sessionID, input string) (*StepResult, error) {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.State == domain.StateCaptcha {
		return m.handleCaptcha(ctx, session, input)
	}

	if err := session.Advance(input); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return &StepResult{SessionID: sessionID, State: session.State, Prompt: session.Prompt()}, err
		}
		return nil, err
	}

	switch session.State {
	case domain.StateCompleted:
		return m.complete(ctx, session)
	case domain.StateTerminated:
		if err := m.repo.Delete(ctx, session); err != nil {
			logger.Warn(ctx, "Failed to delete terminated session", "session_id", sessionID, "error", err)
		}
		return &StepResult{SessionID: sessionID, State: session.State, Prompt: session.Prompt(), Done: true}, nil
	default:
		if err := m.repo.Update(ctx, session, m.ttl(session.Kind)); err != nil {
			return nil, err
		}
		return &StepResult{SessionID: sessionID, State: session.State, Prompt: session.Prompt()}, nil
	}
}

// handleCaptcha 校验验证码，错满 3 次强制终止
func (m *Manager) handleCaptcha(ctx context.Context, session *domain.Session, input string) (*StepResult, error) {
	if input == session.CaptchaAnswer {
		session.State = domain.StateMenu
		session.UpdatedAt = time.Now()
		if err := m.repo.Update(ctx, session, m.ttl(session.Kind)); err != nil {
			return nil, err
		}
		return &StepResult{SessionID: session.SessionID, State: session.State, Prompt: session.Prompt()}, nil
	}

	session.CaptchaAttempts++
	if session.CaptchaAttempts >= domain.MaxCaptchaAttempts {
		if err := m.repo.Delete(ctx, session); err != nil {
			logger.Warn(ctx, "Failed to delete session after captcha failure", "session_id", session.SessionID, "error", err)
		}
		logger.Warn(ctx, "Session terminated after captcha failures", "session_id", session.SessionID)
		return nil, domain.ErrCaptchaFailed
	}

	if err := m.repo.Update(ctx, session, m.ttl(session.Kind)); err != nil {
		return nil, err
	}
	return &StepResult{
		SessionID: session.SessionID,
		State:     session.State,
		Prompt:    fmt.Sprintf("Wrong answer, %d attempts left.", domain.MaxCaptchaAttempts-session.CaptchaAttempts),
	}, nil
}

// complete 会话确认后产出唯一一条规范化提交并走准入流水线
func (m *Manager) complete(ctx context.Context, session *domain.Session) (*StepResult, error) {
	defer func() {
		if err := m.repo.Delete(ctx, session); err != nil {
			logger.Warn(ctx, "Failed to delete completed session", "session_id", session.SessionID, "error", err)
		}
	}()

	sub, err := draftToSubmission(session.Draft, session.Phone)
	if err != nil {
		return nil, err
	}

	result, err := m.admitter.Admit(ctx, sub)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Session submission admitted",
		"session_id", session.SessionID, "listing_id", result.ListingID, "status", result.Status)
	return &StepResult{
		SessionID: session.SessionID,
		State:     session.State,
		Prompt:    session.Prompt(),
		Done:      true,
		Admission: result,
	}, nil
}

// Abort 主动放弃会话
func (m *Manager) Abort(ctx context.Context, sessionID string) error {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	return m.repo.Delete(ctx, session)
}

// draftToSubmission 将采集完的草稿转为规范化提交
func draftToSubmission(d domain.Draft, phone string) (listingdomain.Submission, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return listingdomain.Submission{}, listingdomain.ErrInvalidSubmission
	}
	sub := listingdomain.Submission{
		Name:        d.Name,
		Price:       price,
		Unit:        d.Unit,
		Category:    d.Category,
		Description: d.Description,
		SubmitterID: phone,
		Channel:     listingdomain.ChannelSession,
		SubmittedAt: time.Now(),
	}
	if d.HasLocation {
		sub.Location = &listingdomain.GeoPoint{Lat: d.Lat, Lng: d.Lng}
	}
	return sub, nil
}
