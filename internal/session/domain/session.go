// 包 会话渠道领域模型：文本菜单状态机
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSessionNotFound   = errors.New("session not found or expired")
	ErrSessionExists     = errors.New("phone already has an active session")
	ErrSessionTerminated = errors.New("session terminated")
	ErrCaptchaFailed     = errors.New("captcha attempts exhausted")
	ErrInvalidInput      = errors.New("invalid input")
)

// Kind 会话类型，决定超时时长
type Kind string

const (
	KindSubmit Kind = "SUBMIT"
	KindAdmin  Kind = "ADMIN"
)

// State 菜单状态。每个状态只接受一类输入，依次采集提交字段。
type State string

const (
	StateCaptcha     State = "CAPTCHA"
	StateMenu        State = "MENU"
	StateName        State = "NAME"
	StatePrice       State = "PRICE"
	StateUnit        State = "UNIT"
	StateCategory    State = "CATEGORY"
	StateDescription State = "DESCRIPTION"
	StateLocation    State = "LOCATION"
	StateConfirm     State = "CONFIRM"
	StateCompleted   State = "COMPLETED"
	StateTerminated  State = "TERMINATED"
)

// MaxCaptchaAttempts 验证码重试上限，超出后强制终止会话
const MaxCaptchaAttempts = 3

// Draft 会话过程中逐步采集的提交草稿
type Draft struct {
	Name        string  `json:"name,omitempty"`
	Price       string  `json:"price,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	HasLocation bool    `json:"has_location,omitempty"`
}

// Session 一次文本菜单会话。同一手机号至多一个未结会话。
type Session struct {
	SessionID       string    `json:"session_id"`
	Phone           string    `json:"phone"`
	Kind            Kind      `json:"kind"`
	State           State     `json:"state"`
	CaptchaAnswer   string    `json:"captcha_answer"`
	CaptchaAttempts int       `json:"captcha_attempts"`
	Draft           Draft     `json:"draft"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Done 会话是否已结束
func (s *Session) Done() bool {
	return s.State == StateCompleted || s.State == StateTerminated
}

// Prompt 当前状态对用户的提示文案
func (s *Session) Prompt() string {
	switch s.State {
	case StateCaptcha:
		return "Please answer the verification question to continue."
	case StateMenu:
		return "1. Post a new listing\n2. Cancel"
	case StateName:
		return "Enter the product name:"
	case StatePrice:
		return "Enter the price:"
	case StateUnit:
		return "Enter the unit (e.g. kg, piece):"
	case StateCategory:
		return "Enter the category:"
	case StateDescription:
		return "Enter a description, or send 'skip':"
	case StateLocation:
		return "Send your location as 'lat,lng', or 'skip':"
	case StateConfirm:
		return "1. Confirm and submit\n2. Cancel"
	case StateCompleted:
		return "Your listing has been submitted."
	default:
		return "Session closed."
	}
}

// Advance 按当前状态消费一条用户输入并转移状态。
// 验证码状态由调用方先行校验，不经过本方法。
func (s *Session) Advance(input string) error {
	input = strings.TrimSpace(input)
	switch s.State {
	case StateMenu:
		switch input {
		case "1":
			s.State = StateName
		case "2":
			s.State = StateTerminated
		default:
			return ErrInvalidInput
		}
	case StateName:
		if input == "" {
			return ErrInvalidInput
		}
		s.Draft.Name = input
		s.State = StatePrice
	case StatePrice:
		price, err := decimal.NewFromString(input)
		if err != nil || !price.IsPositive() {
			return ErrInvalidInput
		}
		s.Draft.Price = price.String()
		s.State = StateUnit
	case StateUnit:
		if input == "" {
			return ErrInvalidInput
		}
		s.Draft.Unit = input
		s.State = StateCategory
	case StateCategory:
		if input == "" {
			return ErrInvalidInput
		}
		s.Draft.Category = input
		s.State = StateDescription
	case StateDescription:
		if !strings.EqualFold(input, "skip") {
			s.Draft.Description = input
		}
		s.State = StateLocation
	case StateLocation:
		if !strings.EqualFold(input, "skip") {
			lat, lng, err := parseLocation(input)
			if err != nil {
				return ErrInvalidInput
			}
			s.Draft.Lat = lat
			s.Draft.Lng = lng
			s.Draft.HasLocation = true
		}
		s.State = StateConfirm
	case StateConfirm:
		switch input {
		case "1":
			s.State = StateCompleted
		case "2":
			s.State = StateTerminated
		default:
			return ErrInvalidInput
		}
	default:
		return ErrSessionTerminated
	}
	s.UpdatedAt = time.Now()
	return nil
}

func parseLocation(input string) (float64, float64, error) {
	parts := strings.SplitN(input, ",", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidInput
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, ErrInvalidInput
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, ErrInvalidInput
	}
	return lat, lng, nil
}
