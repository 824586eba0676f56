package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ResetOp is the reset-password gateway operation the upgrade view shares
// with the auth flow's new-password step.
type ResetOp func(ctx context.Context, email, newPassword string) (ok bool, message string, err error)

type upgradeResultMsg struct {
	ok      bool
	message string
	err     error
}

type upgradeSavedMsg struct {
	err error
}

// UpgradeModel is the post-auth password upgrade: a single-state form offered
// to federated users without a local password. It is keyed by the session's
// email, never user-entered, and does not touch the auth flow controller.
type UpgradeModel struct {
	email   string
	reset   ResetOp
	persist func(context.Context) error // flips has-local-password on the stored session

	password textinput.Model
	confirm  textinput.Model
	focus    int

	styles    Styles
	message   string
	loading   bool
	completed bool
	quitting  bool
	fatalErr  error
}

// NewUpgradeModel creates the upgrade view for the signed-in email.
func NewUpgradeModel(email string, reset ResetOp, persist func(context.Context) error) UpgradeModel {
	password := textinput.New()
	password.Placeholder = "New Password"
	password.EchoMode = textinput.EchoPassword
	password.Focus()

	confirm := textinput.New()
	confirm.Placeholder = "Confirm New Password"
	confirm.EchoMode = textinput.EchoPassword

	return UpgradeModel{
		email:    email,
		reset:    reset,
		persist:  persist,
		password: password,
		confirm:  confirm,
		styles:   DefaultStyles(),
	}
}

// Completed reports whether the password was set and the session updated.
func (m UpgradeModel) Completed() bool { return m.completed }

// Err returns the fatal error that ended the view, if any.
func (m UpgradeModel) Err() error { return m.fatalErr }

func (m UpgradeModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m UpgradeModel) canSubmit() bool {
	return !m.loading &&
		m.password.Value() != "" &&
		m.confirm.Value() != "" &&
		m.password.Value() == m.confirm.Value()
}

func (m UpgradeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab", "down", "shift+tab", "up":
			if m.focus == 0 {
				m.focus = 1
				m.password.Blur()
				m.confirm.Focus()
			} else {
				m.focus = 0
				m.confirm.Blur()
				m.password.Focus()
			}
			return m, nil
		case "enter":
			if !m.canSubmit() {
				return m, nil
			}
			m.message = ""
			m.loading = true
			return m, m.submit()
		}

	case upgradeResultMsg:
		m.loading = false
		switch {
		case msg.err != nil:
			m.message = "Something went wrong. Please try again."
		case !msg.ok:
			m.message = fallbackMsg(msg.message, "Failed to reset password.")
		default:
			m.loading = true
			return m, m.save()
		}
		return m, nil

	case upgradeSavedMsg:
		m.loading = false
		if msg.err != nil {
			m.fatalErr = fmt.Errorf("update session: %w", msg.err)
			m.quitting = true
			return m, tea.Quit
		}
		m.completed = true
		m.quitting = true
		return m, tea.Quit
	}

	var cmds [2]tea.Cmd
	m.password, cmds[0] = m.password.Update(msg)
	m.confirm, cmds[1] = m.confirm.Update(msg)
	return m, tea.Batch(cmds[0], cmds[1])
}

func (m *UpgradeModel) submit() tea.Cmd {
	reset := m.reset
	email := m.email
	password := m.password.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		ok, message, err := reset(ctx, email, password)
		return upgradeResultMsg{ok: ok, message: message, err: err}
	}
}

func (m *UpgradeModel) save() tea.Cmd {
	persist := m.persist
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return upgradeSavedMsg{err: persist(ctx)}
	}
}

func (m UpgradeModel) View() string {
	if m.quitting {
		if m.fatalErr != nil {
			return m.styles.Error.Render("Error: "+m.fatalErr.Error()) + "\n"
		}
		if m.completed {
			return m.styles.Success.Render("Password set. You can now sign in with it.") + "\n"
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Set a Password") + "\n")
	b.WriteString(m.styles.Label.Render("for "+m.email) + "\n\n")
	b.WriteString(m.password.View() + "\n")
	b.WriteString(m.confirm.View() + "\n")

	if m.confirm.Value() != "" && m.password.Value() != m.confirm.Value() {
		b.WriteString(m.styles.Error.Render("Passwords do not match") + "\n")
	}
	if m.message != "" {
		b.WriteString(m.styles.Error.Render(m.message) + "\n")
	}
	if m.loading {
		b.WriteString(m.styles.Muted.Render("Resetting...") + "\n")
	}
	b.WriteString(m.styles.Help.Render("enter set password · esc cancel") + "\n")
	return b.String()
}

func fallbackMsg(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
