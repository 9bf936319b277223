package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code    int
	Message string
	Kind    string
	JobID   string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned status %d", e.Code)
	}
	return fmt.Sprintf("service returned status %d: %s", e.Code, e.Message)
}

// Unwrap classifies 5xx responses as ErrServiceUnavailable.
func (e *StatusError) Unwrap() error {
	if e.Code >= 500 {
		return services.ErrServiceUnavailable
	}
	return nil
}

// Client talks to the panelcast HTTP API.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.http.Transport = rt }
}

// NewClient builds a client for serviceURL. requestTimeout bounds each
// request; long-poll waits add it on top of the requested wait.
func NewClient(serviceURL string, requestTimeout time.Duration, opts ...ClientOption) (*Client, error) {
	serviceURL = strings.TrimSpace(serviceURL)
	if serviceURL == "" {
		return nil, fmt.Errorf("%w: service url is empty", services.ErrConfiguration)
	}
	if !strings.Contains(serviceURL, "://") {
		serviceURL = "http://" + serviceURL
	}
	base, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse service url: %v", services.ErrConfiguration, err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	c := &Client{base: base, http: &http.Client{}, timeout: requestTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit starts a job.
func (c *Client) Submit(ctx context.Context, flags stage.Flags) (api.JobView, error) {
	var view api.JobView
	body := api.GenerateRequest{IsColorization: flags.Colorize, IsPanelView: flags.PanelView}
	err := c.do(ctx, c.timeout, http.MethodPost, "/api/jobs", nil, body, &view)
	return view, err
}

// Wait long-polls a job for up to timeout.
func (c *Client) Wait(ctx context.Context, id string, timeout time.Duration) (api.WaitResponse, error) {
	var resp api.WaitResponse
	query := url.Values{"timeout": []string{timeout.String()}}
	err := c.do(ctx, timeout+c.timeout, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/wait", query, nil, &resp)
	return resp, err
}

// Lookup fetches a job by id.
func (c *Client) Lookup(ctx context.Context, id string) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, c.timeout, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &view)
	return view, err
}

// Current fetches the most recent job. ok is false when the service has none.
func (c *Client) Current(ctx context.Context) (api.JobView, bool, error) {
	var view api.JobView
	err := c.do(ctx, c.timeout, http.MethodGet, "/api/jobs/current", nil, nil, &view)
	if IsNotFound(err) {
		return api.JobView{}, false, nil
	}
	if err != nil {
		return api.JobView{}, false, err
	}
	return view, true, nil
}

// Clear empties the workspace.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, c.timeout, http.MethodDelete, "/api/workspace", nil, nil, nil)
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, c.timeout, http.MethodGet, "/api/status", nil, nil, &status)
	return status, err
}

// GenerateSync calls the synchronous generate endpoint. The request is bound
// only by ctx because the server holds it for the whole job. A busy service
// returns the decoded body together with a *StatusError.
func (c *Client) GenerateSync(ctx context.Context, flags stage.Flags) (api.GenerateResponse, error) {
	var resp api.GenerateResponse
	body := api.GenerateRequest{IsColorization: flags.Colorize, IsPanelView: flags.PanelView}
	err := c.do(ctx, 0, http.MethodPost, "/generate-manga", nil, body, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && resp.JobID == "" {
		resp.JobID = statusErr.JobID
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, query url.Values, in, out any) error {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(parent, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return classifyTransport(parent, err)
	}
	if resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var payload api.ErrorResponse
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			statusErr.Message = payload.Error
			statusErr.Kind = payload.Kind
			statusErr.JobID = payload.JobID
		} else {
			statusErr.Message = strings.TrimSpace(string(data))
		}
		if out != nil && len(data) > 0 {
			_ = json.Unmarshal(data, out)
		}
		return statusErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// classifyTransport marks connection failures and per-request timeouts as
// ErrServiceUnavailable. Only a done parent context is reported as a context
// error. The message carries the cause without the request line.
func classifyTransport(parent context.Context, err error) error {
	if ctxErr := parent.Err(); ctxErr != nil {
		return ctxErr
	}
	reason := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		reason = urlErr.Err.Error()
		if urlErr.Timeout() {
			reason = "request timed out"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "request timed out"
	}
	return fmt.Errorf("%w: %s", services.ErrServiceUnavailable, reason)
}

// IsUnavailable reports whether err means the service could not be reached or
// answered with a 5xx.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrServiceUnavailable) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsBusy reports a 409 from the service.
func IsBusy(err error) bool {
	return statusCode(err) == http.StatusConflict
}

// IsNotFound reports a 404 from the service.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
