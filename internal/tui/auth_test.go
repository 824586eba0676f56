package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriya-app/kriya-cli/internal/domain"
	"github.com/kriya-app/kriya-cli/pkg/authflow"
	"github.com/kriya-app/kriya-cli/pkg/gateway"
)

// fakeGateway scripts gateway outcomes per operation.
type fakeGateway struct {
	signInResult  gateway.Result
	signInErr     error
	registered    bool
	otpResult     gateway.Result
	verifyResult  gateway.Result
	signUpResult  gateway.Result
	resetResult   gateway.Result
	exchangeCalls int
	signInCalls   int
}

func (f *fakeGateway) SignIn(ctx context.Context, email, password string) (gateway.Result, error) {
	f.signInCalls++
	return f.signInResult, f.signInErr
}

func (f *fakeGateway) CheckUser(ctx context.Context, email string) (bool, error) {
	return f.registered, nil
}

func (f *fakeGateway) GenerateOTP(ctx context.Context, email string, purpose gateway.OTPPurpose) (gateway.Result, error) {
	return f.otpResult, nil
}

func (f *fakeGateway) VerifyOTP(ctx context.Context, code string) (gateway.Result, error) {
	return f.verifyResult, nil
}

func (f *fakeGateway) SignUp(ctx context.Context, email, password string) (gateway.Result, error) {
	return f.signUpResult, nil
}

func (f *fakeGateway) ResetPassword(ctx context.Context, email, newPassword string) (gateway.Result, error) {
	return f.resetResult, nil
}

func (f *fakeGateway) GoogleExchange(ctx context.Context, credential string) (gateway.Result, error) {
	f.exchangeCalls++
	return gateway.Result{OK: true}, nil
}

// drive runs the model and every command it returns until the queue drains,
// mimicking the bubbletea runtime synchronously.
func drive(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		var cmd tea.Cmd
		m, cmd = m.Update(queue[0])
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		if out := cmd(); out != nil {
			queue = append(queue, flatten(out)...)
		}
	}
	return m
}

// flatten unwraps batch messages into their member commands' outputs.
// Cursor blink messages are dropped: feeding one back into Update yields
// another blink command, which would keep this synchronous driver looping
// forever.
func flatten(msg tea.Msg) []tea.Msg {
	if _, ok := msg.(cursor.BlinkMsg); ok {
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, cmd := range batch {
			if cmd == nil {
				continue
			}
			if inner := cmd(); inner != nil {
				out = append(out, flatten(inner)...)
			}
		}
		return out
	}
	return []tea.Msg{msg}
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	for _, r := range text {
		m = drive(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func keyPress(t *testing.T, m tea.Model, key tea.KeyType) tea.Model {
	t.Helper()
	return drive(t, m, tea.KeyMsg{Type: key})
}

func newTestAuth(gw Gateway, sessions *[]domain.Session) AuthModel {
	save := func(_ context.Context, s domain.Session) error {
		*sessions = append(*sessions, s)
		return nil
	}
	return NewAuthModel(authflow.StateSignIn, gw, save, nil)
}

func TestSignInSuccessPersistsSessionAndQuits(t *testing.T) {
	gw := &fakeGateway{signInResult: gateway.Result{OK: true}}
	var sessions []domain.Session

	var m tea.Model = newTestAuth(gw, &sessions)
	m = typeText(t, m, "user@example.com")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "secret")
	m = keyPress(t, m, tea.KeyEnter)

	auth := m.(AuthModel)
	require.NotNil(t, auth.Finished())
	assert.True(t, auth.Finished().HasLocalPassword)

	require.Len(t, sessions, 1)
	assert.Equal(t, "user@example.com", sessions[0].Email)
	assert.True(t, sessions[0].Authenticated)
}

func TestSignInFailureShowsServerMessage(t *testing.T) {
	gw := &fakeGateway{signInResult: gateway.Result{OK: false, Message: "Invalid email or password"}}
	var sessions []domain.Session

	var m tea.Model = newTestAuth(gw, &sessions)
	m = typeText(t, m, "user@example.com")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "wrong")
	m = keyPress(t, m, tea.KeyEnter)

	auth := m.(AuthModel)
	assert.Nil(t, auth.Finished())
	assert.Empty(t, sessions)
	assert.Contains(t, auth.View(), "Invalid email or password")
}

func TestSignInEmptyFieldsDoesNotCallGateway(t *testing.T) {
	gw := &fakeGateway{}
	var sessions []domain.Session

	var m tea.Model = newTestAuth(gw, &sessions)
	m = keyPress(t, m, tea.KeyEnter)

	assert.Zero(t, gw.signInCalls)
	assert.Nil(t, m.(AuthModel).Finished())
}

func TestSignUpFlowThroughOTP(t *testing.T) {
	gw := &fakeGateway{
		registered:   false,
		otpResult:    gateway.Result{OK: true},
		verifyResult: gateway.Result{OK: true},
		signUpResult: gateway.Result{OK: true},
	}
	var sessions []domain.Session

	save := func(_ context.Context, s domain.Session) error {
		sessions = append(sessions, s)
		return nil
	}
	var m tea.Model = NewAuthModel(authflow.StateSignUp, gw, save, nil)
	m = typeText(t, m, "new@example.com")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "hunter22")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "hunter22")
	m = keyPress(t, m, tea.KeyEnter)

	// Existence check chained into OTP issuance; now on the OTP step.
	auth := m.(AuthModel)
	assert.Contains(t, auth.View(), "Verify OTP")

	m = typeText(t, m, "123456")
	m = keyPress(t, m, tea.KeyEnter)

	auth = m.(AuthModel)
	require.NotNil(t, auth.Finished())
	assert.True(t, auth.Finished().HasLocalPassword)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new@example.com", sessions[0].Email)
}

func TestSignUpMismatchBlocksSubmission(t *testing.T) {
	gw := &fakeGateway{}
	var sessions []domain.Session

	var m tea.Model = NewAuthModel(authflow.StateSignUp, gw, func(context.Context, domain.Session) error { return nil }, nil)
	m = typeText(t, m, "new@example.com")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "one11111")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "two22222")
	m = keyPress(t, m, tea.KeyEnter)

	auth := m.(AuthModel)
	assert.Contains(t, auth.View(), "Passwords do not match")
	assert.Contains(t, auth.View(), "Create Account")
	assert.Empty(t, sessions)
}

func TestBootstrapFailureIsFatalNotSilent(t *testing.T) {
	gw := &fakeGateway{signInResult: gateway.Result{OK: true}}
	save := func(context.Context, domain.Session) error {
		return errors.New("disk full")
	}

	var m tea.Model = NewAuthModel(authflow.StateSignIn, gw, save, nil)
	m = typeText(t, m, "user@example.com")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "secret")
	m = keyPress(t, m, tea.KeyEnter)

	auth := m.(AuthModel)
	assert.Nil(t, auth.Finished())
	require.Error(t, auth.Err())
	assert.True(t, strings.Contains(auth.Err().Error(), "disk full"))
}

func TestGoogleCredentialDrivesExchange(t *testing.T) {
	gw := &fakeGateway{}
	var sessions []domain.Session
	save := func(_ context.Context, s domain.Session) error {
		sessions = append(sessions, s)
		return nil
	}
	acquire := func(context.Context) (string, error) {
		return "opaque-credential", nil
	}

	var m tea.Model = NewAuthModel(authflow.StateSignIn, gw, save, acquire)
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})

	auth := m.(AuthModel)
	assert.Equal(t, 1, gw.exchangeCalls)
	require.NotNil(t, auth.Finished())
	assert.False(t, auth.Finished().HasLocalPassword)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].HasLocalPassword)
}

func TestGoogleAcquireFailureShowsLocalMessage(t *testing.T) {
	gw := &fakeGateway{}
	acquire := func(context.Context) (string, error) {
		return "", errors.New("listener closed")
	}

	var m tea.Model = NewAuthModel(authflow.StateSignIn, gw, func(context.Context, domain.Session) error { return nil }, acquire)
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})

	auth := m.(AuthModel)
	assert.Zero(t, gw.exchangeCalls)
	assert.Contains(t, auth.View(), "Google login failed")
}

func TestUpgradeModelSetsPasswordAndPersists(t *testing.T) {
	var resetEmail, resetPassword string
	reset := func(_ context.Context, email, password string) (bool, string, error) {
		resetEmail, resetPassword = email, password
		return true, "", nil
	}
	persisted := false
	persist := func(context.Context) error {
		persisted = true
		return nil
	}

	var m tea.Model = NewUpgradeModel("fed@example.com", reset, persist)
	m = typeText(t, m, "newpass99")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "newpass99")
	m = keyPress(t, m, tea.KeyEnter)

	up := m.(UpgradeModel)
	assert.True(t, up.Completed())
	assert.True(t, persisted)
	assert.Equal(t, "fed@example.com", resetEmail)
	assert.Equal(t, "newpass99", resetPassword)
}

func TestUpgradeModelMismatchBlocks(t *testing.T) {
	called := false
	reset := func(context.Context, string, string) (bool, string, error) {
		called = true
		return true, "", nil
	}

	var m tea.Model = NewUpgradeModel("fed@example.com", reset, func(context.Context) error { return nil })
	m = typeText(t, m, "one11111")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "two22222")
	m = keyPress(t, m, tea.KeyEnter)

	up := m.(UpgradeModel)
	assert.False(t, called)
	assert.False(t, up.Completed())
	assert.Contains(t, up.View(), "Passwords do not match")
}

func TestUpgradeModelBusinessFailureShowsMessage(t *testing.T) {
	reset := func(context.Context, string, string) (bool, string, error) {
		return false, "Password too weak", nil
	}

	var m tea.Model = NewUpgradeModel("fed@example.com", reset, func(context.Context) error { return nil })
	m = typeText(t, m, "weak1234")
	m = keyPress(t, m, tea.KeyTab)
	m = typeText(t, m, "weak1234")
	m = keyPress(t, m, tea.KeyEnter)

	up := m.(UpgradeModel)
	assert.False(t, up.Completed())
	assert.Contains(t, up.View(), "Password too weak")
}
