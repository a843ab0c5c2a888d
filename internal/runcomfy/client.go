package runcomfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
)

const (
	DefaultBaseURL        = "https://api.runcomfy.net/prod/v1"
	DefaultRequestTimeout = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultMaxWait        = 10 * time.Minute

	maxErrorSnippet = 512
)

// Options configures the deployment client.
type Options struct {
	BaseURL     string
	Credentials Credentials
	HTTPClient  *http.Client
	// RequestTimeout bounds each individual request when HTTPClient is nil.
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// MaxWait bounds a whole Poll call. Zero selects DefaultMaxWait, a
	// negative value disables the bound.
	MaxWait time.Duration
	Logger  *infra.Logger
}

// Client submits jobs to a hosted workflow deployment and collects their images.
type Client struct {
	baseURL      string
	creds        Credentials
	httpClient   *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *infra.Logger
}

// Outcome is the product of one successful Run.
type Outcome struct {
	RequestID string
	Result    Result
	Images    []string
}

// NewClient constructs a client with defaults applied. Missing credentials are
// reported by each operation, not here.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxWait := opts.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:      baseURL,
		creds:        opts.Credentials.normalized(),
		httpClient:   httpClient,
		pollInterval: interval,
		maxWait:      maxWait,
		logger:       logger,
	}
}

// WithCredentials returns a copy of the client bound to other credentials.
func (c *Client) WithCredentials(creds Credentials) *Client {
	clone := *c
	clone.creds = creds.normalized()
	return &clone
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c != nil && c.creds.Valid()
}

// DeploymentID returns the deployment the client addresses.
func (c *Client) DeploymentID() string {
	return c.creds.DeploymentID
}

// Submit creates a job with the given overrides and returns its request id.
func (c *Client) Submit(ctx context.Context, overrides Overrides) (string, error) {
	const op = "submit"
	if !c.HasCredentials() {
		return "", &Error{Op: op, Kind: ErrConfiguration}
	}
	if overrides == nil {
		overrides = Overrides{}
	}
	body, err := json.Marshal(submitRequest{Overrides: overrides})
	if err != nil {
		return "", &Error{Op: op, Kind: ErrSubmission, Err: fmt.Errorf("encode request: %w", err)}
	}
	raw, code, err := c.do(ctx, http.MethodPost, c.deploymentURL("inference"), body)
	if err != nil {
		return "", &Error{Op: op, Kind: ErrSubmission, StatusCode: code, Err: err}
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{Op: op, Kind: ErrSubmission, StatusCode: code, Err: fmt.Errorf("decode response: %w", err)}
	}
	requestID := strings.TrimSpace(decoded.RequestID)
	if requestID == "" {
		return "", &Error{Op: op, Kind: ErrSubmission, StatusCode: code, Err: errors.New("response missing request_id")}
	}
	c.logger.Debug().
		Str("deployment_id", c.creds.DeploymentID).
		Str("request_id", requestID).
		Int("nodes", len(overrides)).
		Msg("runcomfy: job submitted")
	return requestID, nil
}

// Poll requests the job status until it is terminal, sleeping interval between
// attempts. A non-positive interval selects the client default. Transport
// failures abort immediately.
func (c *Client) Poll(ctx context.Context, requestID string, interval time.Duration) (TerminalStatus, error) {
	const op = "poll"
	if !c.HasCredentials() {
		return TerminalStatus{}, &Error{Op: op, Kind: ErrConfiguration}
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return TerminalStatus{}, &Error{Op: op, Kind: ErrPoll, Err: errors.New("request id is required")}
	}
	if interval <= 0 {
		interval = c.pollInterval
	}
	if c.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.maxWait, ErrPollTimeout)
		defer cancel()
	}
	endpoint := c.requestURL(requestID, "status")
	for attempt := 1; ; attempt++ {
		raw, code, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return TerminalStatus{}, &Error{Op: op, Kind: ErrPoll, RequestID: requestID, StatusCode: code, Err: contextCause(ctx, err)}
		}
		var decoded statusResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return TerminalStatus{}, &Error{Op: op, Kind: ErrPoll, RequestID: requestID, StatusCode: code, Err: fmt.Errorf("decode status: %w", err)}
		}
		if state, done := classifyStatus(decoded.Status); done {
			c.logger.Debug().
				Str("request_id", requestID).
				Str("status", decoded.Status).
				Int("attempts", attempt).
				Msg("runcomfy: job finished")
			return TerminalStatus{State: state, Status: decoded.Status, Details: json.RawMessage(raw)}, nil
		}
		c.logger.Debug().
			Str("request_id", requestID).
			Str("status", decoded.Status).
			Int("attempt", attempt).
			Msg("runcomfy: job pending")
		if err := sleepContext(ctx, interval); err != nil {
			return TerminalStatus{}, &Error{Op: op, Kind: ErrPoll, RequestID: requestID, Err: contextCause(ctx, err)}
		}
	}
}

// FetchResult retrieves the output images of a finished job, keyed by the
// node that produced them. Entries without a url are skipped.
func (c *Client) FetchResult(ctx context.Context, requestID string) (Result, error) {
	const op = "result"
	if !c.HasCredentials() {
		return nil, &Error{Op: op, Kind: ErrConfiguration}
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, &Error{Op: op, Kind: ErrResult, Err: errors.New("request id is required")}
	}
	raw, code, err := c.do(ctx, http.MethodGet, c.requestURL(requestID, "result"), nil)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrResult, RequestID: requestID, StatusCode: code, Err: err}
	}
	var decoded resultResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Op: op, Kind: ErrResult, RequestID: requestID, StatusCode: code, Err: fmt.Errorf("decode result: %w", err)}
	}
	result := Result{}
	for node, output := range decoded.Outputs {
		for _, img := range output.Images {
			u := strings.TrimSpace(img.URL)
			if u == "" {
				continue
			}
			result[node] = append(result[node], u)
		}
	}
	c.logger.Debug().
		Str("request_id", requestID).
		Int("nodes", len(result)).
		Msg("runcomfy: result fetched")
	return result, nil
}

// Run submits a job, waits for it and fetches its images. Any failing stage
// aborts the run; no partial result is returned.
func (c *Client) Run(ctx context.Context, overrides Overrides, extraction Extraction) (*Outcome, error) {
	requestID, err := c.Submit(ctx, overrides)
	if err != nil {
		return nil, err
	}
	status, err := c.Poll(ctx, requestID, 0)
	if err != nil {
		return nil, err
	}
	if !status.Completed() {
		c.logger.Warn().
			Str("request_id", requestID).
			Str("status", status.Status).
			Msg("runcomfy: job reported failure")
		return nil, &Error{Op: "run", Kind: ErrJobFailed, RequestID: requestID, Details: status.Details}
	}
	result, err := c.FetchResult(ctx, requestID)
	if err != nil {
		return nil, err
	}
	images := extraction.apply(result)
	c.logger.Debug().
		Str("request_id", requestID).
		Str("extraction", extraction.String()).
		Int("images", len(images)).
		Msg("runcomfy: images extracted")
	return &Outcome{
		RequestID: requestID,
		Result:    result,
		Images:    images,
	}, nil
}

func (c *Client) deploymentURL(suffix string) string {
	return c.baseURL + "/deployments/" + url.PathEscape(c.creds.DeploymentID) + "/" + suffix
}

func (c *Client) requestURL(requestID, suffix string) string {
	return c.deploymentURL("requests/" + url.PathEscape(requestID) + "/" + suffix)
}

// do performs one authorized request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp.StatusCode, fmt.Errorf("unexpected response: %s", snippet(raw))
	}
	return raw, resp.StatusCode, nil
}

func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty body"
	}
	if len(text) > maxErrorSnippet {
		return text[:maxErrorSnippet] + "..."
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// contextCause prefers the context's cancellation cause over the transport
// error it produced, so a MaxWait expiry surfaces as ErrPollTimeout.
func contextCause(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}
