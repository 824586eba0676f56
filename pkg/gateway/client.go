// Package gateway is the client for the Kriya authentication service. Every
// operation is a single POST with a JSON body and a normalized outcome:
// business rejections (wrong password, duplicate email, bad OTP) come back as
// Result{OK: false} with the server's message, while transport and decode
// failures are returned as errors and never carry a user-facing message.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// OTPPurpose selects the message template sent alongside an issued one-time
// password. One issue-OTP operation serves both the sign-up and the
// password-reset flow; only the template differs.
type OTPPurpose string

const (
	PurposeSignUp OTPPurpose = "signup"
	PurposeReset  OTPPurpose = "reset"
)

// Template returns the human-readable text the backend embeds in the OTP email.
func (p OTPPurpose) Template() string {
	if p == PurposeReset {
		return "This is your one time password to reset password"
	}
	return "This is your one time password to register into Kriya"
}

// Result is the normalized outcome of a gateway operation.
type Result struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

// Config holds gateway client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to the authentication service. The underlying http.Client
// carries a cookie jar so the session cookie set on sign-in is replayed on
// subsequent credentialed calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// HTTPClient exposes the credentialed client so satellite API clients (the
// task API) share the same session cookie.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the configured service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SignIn authenticates with a local password.
func (c *Client) SignIn(ctx context.Context, email, password string) (Result, error) {
	return c.post(ctx, "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
}

// CheckUser reports whether an email is registered. Existence is carried as
// an explicit boolean in the response body; for older deployments that encode
// "already registered" as HTTP 400 on this endpoint, the status code is
// mapped onto the same boolean.
func (c *Client) CheckUser(ctx context.Context, email string) (bool, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return false, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, "/auth/userExists", body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var payload struct {
		Registered *bool  `json:"registered"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	if payload.Registered != nil {
		return *payload.Registered, nil
	}
	// Legacy contract: 400 means the email exists.
	return resp.StatusCode == http.StatusBadRequest, nil
}

// GenerateOTP asks the service to email a one-time password. The purpose
// template is threaded through so registration and reset emails differ.
func (c *Client) GenerateOTP(ctx context.Context, email string, purpose OTPPurpose) (Result, error) {
	return c.post(ctx, "/auth/generateOTP", map[string]string{
		"email": email,
		"text":  purpose.Template(),
	})
}

// VerifyOTP submits a 6-digit code for the pending verification.
func (c *Client) VerifyOTP(ctx context.Context, code string) (Result, error) {
	return c.post(ctx, "/auth/verifyOTP", map[string]string{
		"otp": code,
	})
}

// SignUp completes registration after OTP verification.
func (c *Client) SignUp(ctx context.Context, email, password string) (Result, error) {
	return c.post(ctx, "/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	})
}

// ResetPassword sets a new password for the given email. Used both by the
// reset flow (after OTP verification) and by the post-auth password upgrade.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) (Result, error) {
	return c.post(ctx, "/auth/reset_password", map[string]string{
		"email":    email,
		"password": newPassword,
	})
}

// GoogleExchange trades a Google ID token for an authenticated session.
func (c *Client) GoogleExchange(ctx context.Context, credential string) (Result, error) {
	return c.post(ctx, "/auth/google", map[string]string{
		"credential": credential,
	})
}

func (c *Client) post(ctx context.Context, path string, fields map[string]string) (Result, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, path, body)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	// Older endpoints signal success with 2xx alone and omit the flag.
	if !result.OK && result.Message == "" && resp.StatusCode < 300 {
		result.OK = true
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("gateway request failed", "path", path, "error", err)
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	return resp, nil
}
