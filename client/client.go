// Package client talks to an offload server over its HTTP surface.
//
//	c, err := client.New("http://localhost:8000")
//	sub, err := c.ProcessDataset(ctx, 500)
//	st, err := c.Wait(ctx, sub.TaskID, time.Second)
//
// Submissions return as soon as the job is queued. Wait polls the status
// endpoint until the job is ready.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/offload/job"
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("offload/client: status %d: %s", e.StatusCode, e.Message)
}

// Submission is the server's answer to a job submission.
type Submission struct {
	Message        string `json:"message"`
	TaskID         string `json:"task_id"`
	ReportType     string `json:"report_type,omitempty"`
	Status         string `json:"status"`
	CheckStatusURL string `json:"check_status_url"`
}

// Client is an HTTP client for one offload server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("offload/client: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("offload/client: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ProcessDataset submits a dataset of size items.
func (c *Client) ProcessDataset(ctx context.Context, size int) (*Submission, error) {
	q := url.Values{"size": {strconv.Itoa(size)}}
	var sub Submission
	if err := c.do(ctx, http.MethodGet, "/process-dataset/?"+q.Encode(), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GenerateReport submits a report of reportType for userID.
func (c *Client) GenerateReport(ctx context.Context, reportType string, userID int) (*Submission, error) {
	q := url.Values{"type": {reportType}, "user_id": {strconv.Itoa(userID)}}
	var sub Submission
	if err := c.do(ctx, http.MethodGet, "/generate-report/?"+q.Encode(), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Status returns the current status of taskID.
func (c *Client) Status(ctx context.Context, taskID string) (*job.Status, error) {
	var st job.Status
	if err := c.do(ctx, http.MethodGet, "/task-status/"+url.PathEscape(taskID)+"/", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ClearCache empties the server's cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/cache/clear/", nil)
}

// Wait polls Status every interval until the job is ready or ctx is done.
// UNKNOWN is returned right away since it never becomes ready.
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration) (*job.Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if st.Ready || st.State == job.StateUnknown {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("offload/client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("offload/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("offload/client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("offload/client: decode response: %w", err)
		}
	}
	return nil
}
