// Package authflow implements the authentication flow state machine: which
// step is presented, which gateway operation may run next, and how each
// operation's outcome selects the following step. The controller performs no
// I/O itself; submissions return Effect values describing the single gateway
// call to run, and completions are fed back through Resolve. This keeps the
// full transition table unit-testable without a network or a UI.
package authflow

// State names the active authentication step. Exactly one is active at a
// time; there is no terminal state, terminal success is modeled as the
// Bootstrap side effect because the machine is torn down once it fires.
type State int

const (
	StateSignIn State = iota
	StateSignUp
	StateOtpSignUp
	StateForgotPassword
	StateOtpReset
	StateEnterNewPassword
)

func (s State) String() string {
	switch s {
	case StateSignIn:
		return "sign-in"
	case StateSignUp:
		return "sign-up"
	case StateOtpSignUp:
		return "otp-sign-up"
	case StateForgotPassword:
		return "forgot-password"
	case StateOtpReset:
		return "otp-reset"
	case StateEnterNewPassword:
		return "enter-new-password"
	default:
		return "unknown"
	}
}

// NavEvent is a zero-cost transition triggered by a navigation affordance
// rather than a network call.
type NavEvent int

const (
	NavToSignIn NavEvent = iota
	NavToSignUp
	NavToForgotPassword
	NavBack
)

// Draft holds the transient form fields for the active flow. Fields are
// opaque strings and persist across state changes: the email and password
// entered on the sign-up step are the ones submitted after OTP verification.
type Draft struct {
	Email           string
	Password        string
	ConfirmPassword string
	OTP             string
}
