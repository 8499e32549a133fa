package research

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyagent/voyagent/config"
	"github.com/voyagent/voyagent/errors"
	"github.com/voyagent/voyagent/internal/httpclient"
)

// Client talks to the research backend's REST surface: job submission,
// status polling, results retrieval, and cancellation. The live channel
// is handled separately by the connection manager.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
}

// NewClient creates a backend client from configuration
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpclient.New(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}
}

// NewClientWithHTTP creates a client around an existing http.Client,
// typically one from httptest.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.WrapClient(hc),
	}
}

// BaseURL returns the backend base URL the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// startResponse is the backend's answer to a job submission
type startResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// statusResponse mirrors the backend's job status document
type statusResponse struct {
	JobID              string     `json:"job_id"`
	Status             string     `json:"status"`
	ProgressPercentage int        `json:"progress_percentage"`
	CurrentStep        string     `json:"current_step"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	DestinationsCount  int        `json:"destinations_count"`
	ResultsAvailable   bool       `json:"results_available"`
	Error              string     `json:"error,omitempty"`
}

// Start submits a research job and returns its initial pending state
func (c *Client) Start(ctx context.Context, prefs Preferences) (Job, error) {
	if err := prefs.Validate(); err != nil {
		return Job{}, err
	}

	var resp startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/research/start", prefs, &resp); err != nil {
		return Job{}, err
	}
	if resp.JobID == "" {
		return Job{}, errors.Wrap(errors.ErrProtocol, "start response missing job_id")
	}

	status := Status(resp.Status)
	if !IsValidStatus(resp.Status) {
		status = StatusPending
	}
	return Job{
		ID:        resp.JobID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Status fetches the current backend-side view of a job
func (c *Client) Status(ctx context.Context, jobID string) (Job, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/research/status/"+jobID, nil, &resp); err != nil {
		return Job{}, err
	}
	if !IsValidStatus(resp.Status) {
		return Job{}, errors.Wrapf(errors.ErrProtocol, "status response carries unknown status %q", resp.Status)
	}
	return Job{
		ID:                 resp.JobID,
		Status:             Status(resp.Status),
		ProgressPercentage: resp.ProgressPercentage,
		CurrentStep:        resp.CurrentStep,
		CreatedAt:          resp.CreatedAt,
		StartedAt:          resp.StartedAt,
		CompletedAt:        resp.CompletedAt,
		DestinationsCount:  resp.DestinationsCount,
		ResultsAvailable:   resp.ResultsAvailable,
		Error:              resp.Error,
	}, nil
}

// Results fetches the full results payload for a completed job. The
// payload is kept raw; ranking and presentation parse it downstream.
func (c *Client) Results(ctx context.Context, jobID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/research/results/"+jobID, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.Wrapf(errors.ErrNotFound, "no results recorded for job %s", jobID)
	}
	return raw, nil
}

// CancelJob asks the backend to cancel a job. Cancellation is local
// first; this call is best effort and a failure does not undo it.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/research/jobs/"+jobID, nil, nil)
}

// doJSON performs one JSON request/response round trip. Non-2xx status
// codes are mapped onto the error taxonomy so callers can branch with
// errors.Is instead of inspecting codes.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapNetwork(err, "backend request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapNetwork(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(errors.ErrProtocol, "failed to decode response: %v", err)
	}
	return nil
}

// errorBody is the backend's error document shape
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (c *Client) statusError(code int, body []byte) error {
	detail := ""
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Detail != "" {
			detail = eb.Detail
		} else {
			detail = eb.Error
		}
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	if detail == "" {
		detail = http.StatusText(code)
	}

	switch {
	case code == http.StatusNotFound:
		return errors.Wrap(errors.ErrNotFound, detail)
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest:
		return errors.NewValidationError("backend rejected request: %s", detail)
	case code >= 500:
		return errors.NewBackendError("backend error (status %d): %s", code, detail)
	default:
		return errors.Newf("unexpected backend status %d: %s", code, detail)
	}
}
