package authflow

import (
	"github.com/google/uuid"

	"github.com/kriya-app/kriya-cli/internal/domain"
	"github.com/kriya-app/kriya-cli/pkg/gateway"
)

// Op identifies a gateway operation requested by the controller.
type Op int

const (
	OpNone Op = iota
	OpSignIn
	OpCheckUser
	OpGenerateOTP
	OpVerifyOTP
	OpSignUp
	OpResetPassword
	OpGoogleExchange
)

// Effect describes the single gateway call the caller must run next. Token is
// the generation guard: it must be echoed back through Resolve, and a
// completion whose token no longer matches the in-flight call is dropped.
type Effect struct {
	Op         Op
	Token      uuid.UUID
	Email      string
	Password   string
	Code       string
	Credential string
	Purpose    gateway.OTPPurpose
}

// Resolution is the normalized outcome of an Effect's gateway call. Err is
// set only for transport failures; business rejections arrive as OK=false
// with the server's message.
type Resolution struct {
	Op         Op
	OK         bool
	Registered bool // CheckUser payload
	Message    string
	Err        error
}

// Bootstrap is the terminal side effect: persist a session for Email and
// leave the flow. HasLocalPassword is false only on the federated path.
type Bootstrap struct {
	Email            string
	HasLocalPassword bool
}

// Status and error messages surfaced through Message.
const (
	msgAlreadyRegistered = "Email Already registered"
	msgNotRegistered     = "Email is not registered"
	msgOTPSendFailed     = "Failed to send OTP"
	msgResetSuccess      = "Password reset successful. Click below to sign in."
	msgResetFailed       = "Failed to reset password."
	msgLoginFailed       = "Login failed, please try again."
	msgGeneric           = "Something went wrong. Please try again."
)

// Controller owns the flow state, the credential draft, and the pending
// message for the lifetime of the auth view. It is not safe for concurrent
// use; the caller is expected to drive it from a single event loop.
type Controller struct {
	state   State
	draft   Draft
	message string

	loading bool
	token   uuid.UUID // generation token of the in-flight call, Nil when idle

	done          *Bootstrap
	resetComplete bool
}

// New creates a controller in the supplied initial state. Only StateSignIn
// and StateSignUp are valid entry points; anything else falls back to
// StateSignIn.
func New(initial State) *Controller {
	if initial != StateSignIn && initial != StateSignUp {
		initial = StateSignIn
	}
	return &Controller{state: initial}
}

// State returns the active step.
func (c *Controller) State() State { return c.state }

// Message returns the pending status or error message for the active step.
func (c *Controller) Message() string { return c.message }

// Loading reports whether a gateway call is in flight. All submit
// affordances must be disabled while true.
func (c *Controller) Loading() bool { return c.loading }

// Done returns the bootstrap record once a terminal success has occurred,
// nil before that. After Done returns non-nil the controller ignores all
// further events.
func (c *Controller) Done() *Bootstrap { return c.done }

// ResetComplete reports whether the password reset succeeded, which exposes
// the "go to sign in" affordance on the new-password step.
func (c *Controller) ResetComplete() bool { return c.resetComplete }

// Draft returns the current form fields.
func (c *Controller) Draft() Draft { return c.draft }

func (c *Controller) SetEmail(v string)           { c.draft.Email = v }
func (c *Controller) SetPassword(v string)        { c.draft.Password = v }
func (c *Controller) SetConfirmPassword(v string) { c.draft.ConfirmPassword = v }
func (c *Controller) SetOTP(v string)             { c.draft.OTP = v }

// Validate reports why the active step's fields fail its gate, or nil when
// they pass: domain.ErrEmptyEmail, domain.ErrEmptyPassword,
// domain.ErrPasswordMismatch, or domain.ErrMalformedOTP.
func (c *Controller) Validate() error {
	d := c.draft
	switch c.state {
	case StateSignIn:
		if d.Email == "" {
			return domain.ErrEmptyEmail
		}
		if d.Password == "" {
			return domain.ErrEmptyPassword
		}
	case StateSignUp:
		if d.Email == "" {
			return domain.ErrEmptyEmail
		}
		if d.Password == "" || d.ConfirmPassword == "" {
			return domain.ErrEmptyPassword
		}
		if d.Password != d.ConfirmPassword {
			return domain.ErrPasswordMismatch
		}
	case StateOtpSignUp, StateOtpReset:
		if !isOTP(d.OTP) {
			return domain.ErrMalformedOTP
		}
	case StateForgotPassword:
		if d.Email == "" {
			return domain.ErrEmptyEmail
		}
	case StateEnterNewPassword:
		if d.Password == "" || d.ConfirmPassword == "" {
			return domain.ErrEmptyPassword
		}
		if d.Password != d.ConfirmPassword {
			return domain.ErrPasswordMismatch
		}
	}
	return nil
}

// CanSubmit reports whether the active step's validation gate passes.
// Mismatched or missing fields never reach the gateway.
func (c *Controller) CanSubmit() bool {
	if c.loading || c.done != nil {
		return false
	}
	return c.Validate() == nil
}

func isOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Submit runs the active step's network transition. It returns the gateway
// call to perform, or an OpNone effect when the validation gate fails or a
// call is already in flight.
func (c *Controller) Submit() Effect {
	if !c.CanSubmit() {
		return Effect{}
	}
	c.message = ""
	switch c.state {
	case StateSignIn:
		return c.issue(Effect{Op: OpSignIn, Email: c.draft.Email, Password: c.draft.Password})
	case StateSignUp, StateForgotPassword:
		return c.issue(Effect{Op: OpCheckUser, Email: c.draft.Email})
	case StateOtpSignUp, StateOtpReset:
		return c.issue(Effect{Op: OpVerifyOTP, Code: c.draft.OTP})
	case StateEnterNewPassword:
		return c.issue(Effect{Op: OpResetPassword, Email: c.draft.Email, Password: c.draft.Password})
	default:
		return Effect{}
	}
}

// Google runs the federated transition with a provider credential. Only
// valid on the sign-in step.
func (c *Controller) Google(credential string) Effect {
	if c.state != StateSignIn || c.loading || c.done != nil {
		return Effect{}
	}
	c.message = ""
	return c.issue(Effect{Op: OpGoogleExchange, Credential: credential})
}

// Navigate applies a link/back transition. Navigation is permitted while a
// call is in flight; the in-flight call's token is invalidated so its late
// completion cannot touch the new state.
func (c *Controller) Navigate(ev NavEvent) {
	if c.done != nil {
		return
	}
	switch c.state {
	case StateSignIn:
		if ev == NavToSignUp {
			c.setState(StateSignUp)
		} else if ev == NavToForgotPassword {
			c.setState(StateForgotPassword)
		}
	case StateSignUp:
		if ev == NavToSignIn {
			c.setState(StateSignIn)
		}
	case StateOtpSignUp:
		if ev == NavBack {
			c.setState(StateSignUp)
		}
	case StateForgotPassword:
		if ev == NavBack || ev == NavToSignIn {
			c.setState(StateSignIn)
		}
	case StateOtpReset:
		if ev == NavBack {
			c.setState(StateForgotPassword)
		}
	case StateEnterNewPassword:
		if ev == NavToSignIn {
			c.setState(StateSignIn)
		}
	}
}

// Resolve applies a completed gateway call. Completions carrying a stale
// token (the user navigated away, or a newer call superseded this one) are
// dropped without touching state. The returned Effect is non-empty when the
// transition chains directly into another call (existence-check into
// issue-OTP, verify-OTP into sign-up).
func (c *Controller) Resolve(token uuid.UUID, res Resolution) Effect {
	if c.done != nil || token == uuid.Nil || token != c.token {
		return Effect{}
	}
	c.loading = false
	c.token = uuid.Nil

	if res.Err != nil {
		c.message = msgGeneric
		return Effect{}
	}

	switch res.Op {
	case OpSignIn:
		if res.OK {
			c.finish(true)
			return Effect{}
		}
		c.message = fallback(res.Message, msgLoginFailed)

	case OpGoogleExchange:
		if res.OK {
			c.finish(false)
			return Effect{}
		}
		c.message = fallback(res.Message, msgLoginFailed)

	case OpCheckUser:
		switch c.state {
		case StateSignUp:
			if res.Registered {
				c.message = msgAlreadyRegistered
				return Effect{}
			}
			return c.issue(Effect{Op: OpGenerateOTP, Email: c.draft.Email, Purpose: gateway.PurposeSignUp})
		case StateForgotPassword:
			if !res.Registered {
				c.message = msgNotRegistered
				return Effect{}
			}
			return c.issue(Effect{Op: OpGenerateOTP, Email: c.draft.Email, Purpose: gateway.PurposeReset})
		}

	case OpGenerateOTP:
		if !res.OK {
			c.message = fallback(res.Message, msgOTPSendFailed)
			return Effect{}
		}
		if c.state == StateSignUp {
			c.setState(StateOtpSignUp)
		} else if c.state == StateForgotPassword {
			c.setState(StateOtpReset)
		}

	case OpVerifyOTP:
		if !res.OK {
			c.message = fallback(res.Message, msgGeneric)
			return Effect{}
		}
		if c.state == StateOtpSignUp {
			return c.issue(Effect{Op: OpSignUp, Email: c.draft.Email, Password: c.draft.Password})
		}
		if c.state == StateOtpReset {
			c.setState(StateEnterNewPassword)
		}

	case OpSignUp:
		if res.OK {
			c.finish(true)
			return Effect{}
		}
		c.message = fallback(res.Message, msgGeneric)

	case OpResetPassword:
		if res.OK {
			c.resetComplete = true
			c.message = msgResetSuccess
			return Effect{}
		}
		c.message = fallback(res.Message, msgResetFailed)
	}
	return Effect{}
}

// issue stamps an effect with a fresh generation token and marks the call in
// flight.
func (c *Controller) issue(e Effect) Effect {
	c.loading = true
	c.token = uuid.New()
	e.Token = c.token
	return e
}

// setState changes step, clearing the pending message synchronously and
// invalidating any in-flight call so a slow response cannot leak into the
// new step.
func (c *Controller) setState(s State) {
	c.state = s
	c.message = ""
	c.loading = false
	c.token = uuid.Nil
}

func (c *Controller) finish(hasLocalPassword bool) {
	c.done = &Bootstrap{
		Email:            c.draft.Email,
		HasLocalPassword: hasLocalPassword,
	}
	c.loading = false
	c.token = uuid.Nil
	c.message = ""
}

func fallback(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
