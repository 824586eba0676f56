// Package tui renders the authentication flow in the terminal. The models
// here are thin shells: every transition decision lives in pkg/authflow, and
// each submission dispatches exactly one gateway call as a tea.Cmd whose
// completion is routed back through the controller with its generation token.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/kriya-app/kriya-cli/internal/domain"
	"github.com/kriya-app/kriya-cli/internal/federated"
	"github.com/kriya-app/kriya-cli/pkg/authflow"
	"github.com/kriya-app/kriya-cli/pkg/gateway"
)

func parseCredentialEmail(credential string) (string, error) {
	claims, err := federated.ParseClaims(credential)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// Gateway is the slice of the gateway client the auth view needs.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (gateway.Result, error)
	CheckUser(ctx context.Context, email string) (bool, error)
	GenerateOTP(ctx context.Context, email string, purpose gateway.OTPPurpose) (gateway.Result, error)
	VerifyOTP(ctx context.Context, code string) (gateway.Result, error)
	SignUp(ctx context.Context, email, password string) (gateway.Result, error)
	ResetPassword(ctx context.Context, email, newPassword string) (gateway.Result, error)
	GoogleExchange(ctx context.Context, credential string) (gateway.Result, error)
}

// CredentialSource produces a federated credential, blocking until the user
// completes the provider's sign-in. Nil disables the affordance.
type CredentialSource func(ctx context.Context) (string, error)

const callTimeout = 30 * time.Second

// field indices into AuthModel.inputs. One persistent input per draft field,
// so values survive state changes the same way the draft does.
const (
	fieldEmail = iota
	fieldPassword
	fieldConfirm
	fieldOTP
	fieldCount
)

type gatewayMsg struct {
	token uuid.UUID
	res   authflow.Resolution
}

type credentialMsg struct {
	credential string
	email      string
	err        error
}

type bootstrapMsg struct {
	err error
}

// AuthModel drives the sign-in/sign-up/reset flow.
type AuthModel struct {
	ctrl        *authflow.Controller
	gw          Gateway
	saveSession func(context.Context, domain.Session) error
	acquire     CredentialSource

	inputs [fieldCount]textinput.Model
	focus  int

	styles     Styles
	finished   *authflow.Bootstrap
	fatalErr   error
	quitting   bool
	googleBusy bool
	googleErr  string
}

// NewAuthModel creates the auth view. initial must be StateSignIn or
// StateSignUp; saveSession persists the bootstrap record.
func NewAuthModel(initial authflow.State, gw Gateway, saveSession func(context.Context, domain.Session) error, acquire CredentialSource) AuthModel {
	m := AuthModel{
		ctrl:        authflow.New(initial),
		gw:          gw,
		saveSession: saveSession,
		acquire:     acquire,
		styles:      DefaultStyles(),
	}

	email := textinput.New()
	email.Placeholder = "Email"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword

	confirm := textinput.New()
	confirm.Placeholder = "Confirm Password"
	confirm.EchoMode = textinput.EchoPassword

	otp := textinput.New()
	otp.Placeholder = "6-digit OTP"
	otp.CharLimit = 6

	m.inputs = [fieldCount]textinput.Model{email, password, confirm, otp}
	m.setFocus(0)
	return m
}

// Finished returns the bootstrap record once the flow completed and the
// session was persisted.
func (m AuthModel) Finished() *authflow.Bootstrap { return m.finished }

// Err returns the fatal error that ended the view, if any.
func (m AuthModel) Err() error { return m.fatalErr }

func (m AuthModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m AuthModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case gatewayMsg:
		prev := m.ctrl.State()
		next := m.ctrl.Resolve(msg.token, msg.res)
		if m.ctrl.State() != prev {
			m.setFocus(0)
		}
		if cmd := m.dispatch(next); cmd != nil {
			return m, cmd
		}
		if boot := m.ctrl.Done(); boot != nil {
			return m, m.bootstrap(*boot)
		}
		return m, nil

	case credentialMsg:
		m.googleBusy = false
		if msg.err != nil {
			// Local failure: nothing was sent, so no server message exists.
			m.googleErr = "Google login failed"
			return m, nil
		}
		m.googleErr = ""
		m.ctrl.SetEmail(msg.email)
		return m, m.dispatch(m.ctrl.Google(msg.credential))

	case bootstrapMsg:
		if msg.err != nil {
			// A session that failed to persist must not pretend to be one.
			m.fatalErr = fmt.Errorf("save session: %w", msg.err)
			m.quitting = true
			return m, tea.Quit
		}
		m.finished = m.ctrl.Done()
		m.quitting = true
		return m, tea.Quit
	}

	return m, m.updateInputs(msg)
}

func (m AuthModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "down":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab", "up":
		m.cycleFocus(-1)
		return m, nil

	case "enter":
		m.syncDraft()
		if m.ctrl.State() == authflow.StateEnterNewPassword && m.ctrl.ResetComplete() {
			m.ctrl.Navigate(authflow.NavToSignIn)
			m.setFocus(0)
			return m, nil
		}
		return m, m.dispatch(m.ctrl.Submit())

	case "esc":
		m.ctrl.Navigate(authflow.NavBack)
		m.setFocus(0)
		return m, nil

	case "ctrl+s":
		switch m.ctrl.State() {
		case authflow.StateSignIn:
			m.ctrl.Navigate(authflow.NavToSignUp)
		case authflow.StateSignUp:
			m.ctrl.Navigate(authflow.NavToSignIn)
		}
		m.setFocus(0)
		return m, nil

	case "ctrl+f":
		m.ctrl.Navigate(authflow.NavToForgotPassword)
		m.setFocus(0)
		return m, nil

	case "ctrl+g":
		if m.acquire == nil || m.ctrl.State() != authflow.StateSignIn || m.googleBusy || m.ctrl.Loading() {
			return m, nil
		}
		m.googleBusy = true
		m.googleErr = ""
		return m, m.acquireCredential()
	}

	return m, m.updateInputs(msg)
}

// dispatch turns a controller effect into the single gateway call it names.
func (m *AuthModel) dispatch(eff authflow.Effect) tea.Cmd {
	if eff.Op == authflow.OpNone {
		return nil
	}
	gw := m.gw
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		res := authflow.Resolution{Op: eff.Op}
		switch eff.Op {
		case authflow.OpSignIn:
			r, err := gw.SignIn(ctx, eff.Email, eff.Password)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		case authflow.OpCheckUser:
			registered, err := gw.CheckUser(ctx, eff.Email)
			res.Registered, res.Err = registered, err
		case authflow.OpGenerateOTP:
			r, err := gw.GenerateOTP(ctx, eff.Email, eff.Purpose)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		case authflow.OpVerifyOTP:
			r, err := gw.VerifyOTP(ctx, eff.Code)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		case authflow.OpSignUp:
			r, err := gw.SignUp(ctx, eff.Email, eff.Password)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		case authflow.OpResetPassword:
			r, err := gw.ResetPassword(ctx, eff.Email, eff.Password)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		case authflow.OpGoogleExchange:
			r, err := gw.GoogleExchange(ctx, eff.Credential)
			res.OK, res.Message, res.Err = r.OK, r.Message, err
		}
		return gatewayMsg{token: eff.Token, res: res}
	}
}

func (m *AuthModel) acquireCredential() tea.Cmd {
	acquire := m.acquire
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cred, err := acquire(ctx)
		if err != nil {
			return credentialMsg{err: err}
		}
		email := ""
		if claims, err := parseCredentialEmail(cred); err == nil {
			email = claims
		}
		return credentialMsg{credential: cred, email: email}
	}
}

func (m *AuthModel) bootstrap(boot authflow.Bootstrap) tea.Cmd {
	save := m.saveSession
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		err := save(ctx, domain.Session{
			Email:            boot.Email,
			HasLocalPassword: boot.HasLocalPassword,
			Authenticated:    true,
		})
		return bootstrapMsg{err: err}
	}
}

// visibleFields returns the input indices shown for the active state.
func (m AuthModel) visibleFields() []int {
	switch m.ctrl.State() {
	case authflow.StateSignIn:
		return []int{fieldEmail, fieldPassword}
	case authflow.StateSignUp:
		return []int{fieldEmail, fieldPassword, fieldConfirm}
	case authflow.StateOtpSignUp, authflow.StateOtpReset:
		return []int{fieldOTP}
	case authflow.StateForgotPassword:
		return []int{fieldEmail}
	case authflow.StateEnterNewPassword:
		return []int{fieldPassword, fieldConfirm}
	default:
		return nil
	}
}

func (m *AuthModel) cycleFocus(delta int) {
	fields := m.visibleFields()
	if len(fields) == 0 {
		return
	}
	m.focus = (m.focus + delta + len(fields)) % len(fields)
	m.applyFocus()
}

func (m *AuthModel) setFocus(i int) {
	m.focus = i
	m.applyFocus()
}

func (m *AuthModel) applyFocus() {
	fields := m.visibleFields()
	if m.focus >= len(fields) {
		m.focus = 0
	}
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	if len(fields) > 0 {
		m.inputs[fields[m.focus]].Focus()
	}
}

func (m *AuthModel) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, i := range m.visibleFields() {
		var cmd tea.Cmd
		m.inputs[i], cmd = m.inputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	m.syncDraft()
	return tea.Batch(cmds...)
}

func (m *AuthModel) syncDraft() {
	m.ctrl.SetEmail(m.inputs[fieldEmail].Value())
	m.ctrl.SetPassword(m.inputs[fieldPassword].Value())
	m.ctrl.SetConfirmPassword(m.inputs[fieldConfirm].Value())
	m.ctrl.SetOTP(m.inputs[fieldOTP].Value())
}

func (m AuthModel) View() string {
	if m.quitting {
		if m.fatalErr != nil {
			return m.styles.Error.Render("Error: "+m.fatalErr.Error()) + "\n"
		}
		if m.finished != nil {
			return m.styles.Success.Render("Signed in as "+m.finished.Email) + "\n"
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title()) + "\n")

	for _, i := range m.visibleFields() {
		b.WriteString(m.inputs[i].View() + "\n")
	}

	d := m.ctrl.Draft()
	if mismatch(m.ctrl.State(), d) {
		b.WriteString(m.styles.Error.Render("Passwords do not match") + "\n")
	}
	if m.googleErr != "" {
		b.WriteString(m.styles.Error.Render(m.googleErr) + "\n")
	}
	if msg := m.ctrl.Message(); msg != "" {
		style := m.styles.Error
		if m.ctrl.ResetComplete() {
			style = m.styles.Success
		}
		b.WriteString(style.Render(msg) + "\n")
	}
	if m.ctrl.Loading() || m.googleBusy {
		b.WriteString(m.styles.Muted.Render(m.loadingLabel()) + "\n")
	}

	b.WriteString(m.styles.Help.Render(m.help()) + "\n")
	return b.String()
}

func mismatch(s authflow.State, d authflow.Draft) bool {
	if s != authflow.StateSignUp && s != authflow.StateEnterNewPassword {
		return false
	}
	return d.ConfirmPassword != "" && d.Password != d.ConfirmPassword
}

func (m AuthModel) title() string {
	switch m.ctrl.State() {
	case authflow.StateSignIn:
		return "Welcome Back"
	case authflow.StateSignUp:
		return "Create Account"
	case authflow.StateOtpSignUp, authflow.StateOtpReset:
		return "Verify OTP"
	case authflow.StateForgotPassword:
		return "Reset Password"
	case authflow.StateEnterNewPassword:
		return "Enter New Password"
	default:
		return ""
	}
}

func (m AuthModel) loadingLabel() string {
	if m.googleBusy {
		return "Waiting for Google sign-in in your browser..."
	}
	switch m.ctrl.State() {
	case authflow.StateSignIn:
		return "Signing In..."
	case authflow.StateSignUp, authflow.StateForgotPassword:
		return "Sending OTP..."
	case authflow.StateOtpSignUp, authflow.StateOtpReset:
		return "Verifying..."
	case authflow.StateEnterNewPassword:
		return "Resetting..."
	default:
		return ""
	}
}

func (m AuthModel) help() string {
	switch m.ctrl.State() {
	case authflow.StateSignIn:
		h := "enter submit · ctrl+s sign up · ctrl+f forgot password"
		if m.acquire != nil {
			h += " · ctrl+g continue with Google"
		}
		return h + " · ctrl+c quit"
	case authflow.StateSignUp:
		return "enter send OTP · ctrl+s sign in · ctrl+c quit"
	case authflow.StateOtpSignUp, authflow.StateOtpReset:
		return "enter verify · esc back · ctrl+c quit"
	case authflow.StateForgotPassword:
		return "enter send OTP · esc back to sign in · ctrl+c quit"
	case authflow.StateEnterNewPassword:
		if m.ctrl.ResetComplete() {
			return "enter go to sign in · ctrl+c quit"
		}
		return "enter reset password · ctrl+c quit"
	default:
		return ""
	}
}
