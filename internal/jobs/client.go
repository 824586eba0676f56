// Package jobs is the client for the Kriya task API. Every operation is one
// request against one endpoint; there is no client-side state to keep
// consistent. Calls ride the same cookie-credentialed http.Client as the auth
// gateway, so an established session authorizes them.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kriya-app/kriya-cli/internal/domain"
)

// Client talks to the task API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a jobs client sharing httpClient's cookie jar.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// SaveRequest holds the writable job fields. Create and Update send the same
// payload; activation rides along as IsActive rather than having its own
// endpoint.
type SaveRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	CronExpression string `json:"cronExpression"`
	CallbackURL    string `json:"callbackUrl"`
	Method         string `json:"method"`
	Body           string `json:"body,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// CallbackTest describes the trial request the backend fires once to verify
// a callback target before a job is saved.
type CallbackTest struct {
	CallbackURL string `json:"callbackUrl"`
	Method      string `json:"method"`
	Body        string `json:"body,omitempty"`
}

// jobEnvelope matches the single-job responses, which nest under "job".
type jobEnvelope struct {
	Job domain.Job `json:"job"`
}

// List fetches all jobs owned by the signed-in user.
func (c *Client) List(ctx context.Context) ([]domain.Job, error) {
	var out struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/job", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Get fetches one job.
func (c *Client) Get(ctx context.Context, id string) (*domain.Job, error) {
	var out jobEnvelope
	if err := c.call(ctx, http.MethodGet, "/api/job/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Create registers a new job.
func (c *Client) Create(ctx context.Context, req SaveRequest) (*domain.Job, error) {
	var out jobEnvelope
	if err := c.call(ctx, http.MethodPost, "/api/job", req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Update replaces a job's fields.
func (c *Client) Update(ctx context.Context, id string, req SaveRequest) (*domain.Job, error) {
	var out jobEnvelope
	if err := c.call(ctx, http.MethodPut, "/api/job/"+id, req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Delete removes a job.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/job/"+id, nil, nil)
}

// Toggle flips a job's active flag. The backend has no dedicated toggle
// endpoint; activation is a job field, so this reads the job and writes it
// back with IsActive inverted.
func (c *Client) Toggle(ctx context.Context, id string) (*domain.Job, error) {
	job, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Update(ctx, id, SaveRequest{
		Name:           job.Name,
		Description:    job.Description,
		CronExpression: job.CronExpression,
		CallbackURL:    job.CallbackURL,
		Method:         job.Method,
		Body:           job.Body,
		IsActive:       !job.IsActive,
	})
}

// Execute triggers a manual run outside the job's schedule.
func (c *Client) Execute(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/job/"+id+"/execute", struct{}{}, nil)
}

// TestCallback asks the backend to fire the trial request once and reports whether
// the target answered. A false result carries the backend's message.
func (c *Client) TestCallback(ctx context.Context, trial CallbackTest) (bool, string, error) {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/job/test-callback", trial, &out); err != nil {
		return false, "", err
	}
	return out.Success, out.Message, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrJobNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrNotAuthenticated
	case resp.StatusCode >= 300:
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
