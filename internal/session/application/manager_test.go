package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	admissiondomain "github.com/wyfcoding/marketplace/internal/admission/domain"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	"github.com/wyfcoding/marketplace/internal/session/domain"
)

type fakeSessionRepo struct {
	sessions map[string]*domain.Session
	phones   map[string]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*domain.Session),
		phones:   make(map[string]string),
	}
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if _, held := f.phones[session.Phone]; held {
		return domain.ErrSessionExists
	}
	copied := *session
	f.sessions[session.SessionID] = &copied
	f.phones[session.Phone] = session.SessionID
	return nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	copied := *session
	f.sessions[session.SessionID] = &copied
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, session *domain.Session) error {
	delete(f.sessions, session.SessionID)
	delete(f.phones, session.Phone)
	return nil
}

type fakeAdmitter struct {
	lastSub listingdomain.Submission
	result  *admissiondomain.Result
	err     error
	calls   int
}

func (f *fakeAdmitter) Admit(ctx context.Context, sub listingdomain.Submission) (*admissiondomain.Result, error) {
	f.calls++
	f.lastSub = sub
	return f.result, f.err
}

func newTestManager() (*Manager, *fakeSessionRepo, *fakeAdmitter) {
	repo := newFakeSessionRepo()
	admitter := &fakeAdmitter{result: &admissiondomain.Result{
		ListingID: "lst-1",
		Status:    listingdomain.StatusApproved,
	}}
	return NewManager(repo, admitter, 0, 0), repo, admitter
}

// solveCaptcha 通过存储的答案通过验证码
func solveCaptcha(t *testing.T, m *Manager, repo *fakeSessionRepo, sessionID string) {
	t.Helper()
	session := repo.sessions[sessionID]
	require.NotNil(t, session)
	step, err := m.Input(context.Background(), sessionID, session.CaptchaAnswer)
	require.NoError(t, err)
	require.Equal(t, domain.StateMenu, step.State)
}

func TestStartIssuesCaptchaChallenge(t *testing.T) {
	m, repo, _ := newTestManager()

	step, challenge, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)

	assert.Equal(t, domain.StateCaptcha, step.State)
	assert.Regexp(t, `^SES-\d+$`, step.SessionID)
	assert.Contains(t, challenge, "What is")
	assert.Len(t, repo.sessions, 1)
}

func TestStartRejectsSecondSessionForPhone(t *testing.T) {
	m, _, _ := newTestManager()

	_, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)

	_, _, err = m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestCaptchaExhaustionTerminatesSession(t *testing.T) {
	m, repo, _ := newTestManager()

	step, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)

	for i := 0; i < domain.MaxCaptchaAttempts-1; i++ {
		retry, err := m.Input(context.Background(), step.SessionID, "wrong")
		require.NoError(t, err)
		assert.Equal(t, domain.StateCaptcha, retry.State)
		assert.Contains(t, retry.Prompt, "attempts left")
	}

	_, err = m.Input(context.Background(), step.SessionID, "wrong")
	assert.ErrorIs(t, err, domain.ErrCaptchaFailed)

	// 会话删除，手机号锁释放
	assert.Empty(t, repo.sessions)
	_, _, err = m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	assert.NoError(t, err)
}

func TestFullWalkProducesSessionSubmission(t *testing.T) {
	m, repo, admitter := newTestManager()

	step, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)
	solveCaptcha(t, m, repo, step.SessionID)

	inputs := []string{"1", "maize flour", "250", "bag", "food", "skip", "-1.29,36.82"}
	for _, input := range inputs {
		next, err := m.Input(context.Background(), step.SessionID, input)
		require.NoError(t, err, "input %q", input)
		assert.False(t, next.Done)
	}

	final, err := m.Input(context.Background(), step.SessionID, "1")
	require.NoError(t, err)

	assert.True(t, final.Done)
	require.NotNil(t, final.Admission)
	assert.Equal(t, "lst-1", final.Admission.ListingID)

	assert.Equal(t, 1, admitter.calls)
	sub := admitter.lastSub
	assert.Equal(t, listingdomain.ChannelSession, sub.Channel)
	assert.Equal(t, "+254700000001", sub.SubmitterID)
	assert.Equal(t, "maize flour", sub.Name)
	assert.Equal(t, "250", sub.Price.String())
	require.NotNil(t, sub.Location)
	assert.InDelta(t, -1.29, sub.Location.Lat, 1e-9)

	// 会话完成即删除
	assert.Empty(t, repo.sessions)
}

func TestInvalidInputRepromptsSameState(t *testing.T) {
	m, repo, _ := newTestManager()

	step, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)
	solveCaptcha(t, m, repo, step.SessionID)

	retry, err := m.Input(context.Background(), step.SessionID, "9")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NotNil(t, retry)
	assert.Equal(t, domain.StateMenu, retry.State)
}

func TestMenuCancelDeletesSession(t *testing.T) {
	m, repo, admitter := newTestManager()

	step, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)
	solveCaptcha(t, m, repo, step.SessionID)

	final, err := m.Input(context.Background(), step.SessionID, "2")
	require.NoError(t, err)
	assert.True(t, final.Done)
	assert.Nil(t, final.Admission)
	assert.Equal(t, 0, admitter.calls)
	assert.Empty(t, repo.sessions)
}

func TestAdmissionErrorSurfacesToCaller(t *testing.T) {
	m, repo, admitter := newTestManager()
	admitter.result = nil
	admitter.err = admissiondomain.ErrSecurityBlock

	step, _, err := m.Start(context.Background(), "+254700000001", domain.KindSubmit)
	require.NoError(t, err)
	solveCaptcha(t, m, repo, step.SessionID)

	for _, input := range []string{"1", "maize flour", "250", "bag", "food", "skip", "skip"} {
		_, err := m.Input(context.Background(), step.SessionID, input)
		require.NoError(t, err)
	}

	_, err = m.Input(context.Background(), step.SessionID, "1")
	assert.ErrorIs(t, err, admissiondomain.ErrSecurityBlock)

	// 会话仍被清理，提交方可重新发起
	assert.Empty(t, repo.sessions)
}

func TestAbortUnknownSession(t *testing.T) {
	m, _, _ := newTestManager()
	assert.ErrorIs(t, m.Abort(context.Background(), "missing"), domain.ErrSessionNotFound)
}
