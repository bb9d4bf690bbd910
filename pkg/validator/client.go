package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/metrics"
)

// ClientConfig represents the configuration of the validation client.
type ClientConfig struct {
	BaseURL        string
	Path           string        // Default: /api/validate
	Mode           string        // ModeJSON (default) or ModeRaw
	ConnectTimeout time.Duration // Default: 5 seconds
	ReadTimeout    time.Duration // Default: 30 seconds
	Retries        int           // Additional attempts after the first; default 2
}

// Client posts instance documents to the validation service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	mode       string
	retries    int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables attempt and outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the HTTP client built from the configured timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a new validation client.
func NewClient(config ClientConfig, opts ...Option) *Client {
	connectTimeout := config.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}
	readTimeout := config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	path := config.Path
	if path == "" {
		path = "/api/validate"
	}
	mode := config.Mode
	if mode == "" {
		mode = ModeJSON
	}
	retries := config.Retries
	if retries < 0 {
		retries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   connectTimeout + readTimeout,
		},
		endpoint: strings.TrimRight(config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		mode:     mode,
		retries:  retries,
		logger:   slog.Default(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Validate validates a document with the configured number of retries.
func (c *Client) Validate(ctx context.Context, document string) Result {
	return c.ValidateWithRetries(ctx, document, c.retries)
}

// ValidateWithRetries posts the document, retrying 503 responses and transport
// failures up to retries additional times with a linear backoff. It never fails:
// every outcome, including an unreachable service, is reported as a Result.
func (c *Client) ValidateWithRetries(ctx context.Context, document string, retries int) Result {
	start := time.Now()
	result := c.validate(ctx, document, retries)
	c.metrics.ObserveValidationLatency(time.Since(start))
	c.metrics.IncrementValidationOutcome(outcome(result))

	c.logger.Info("validation finished",
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"attempts", result.Attempts,
		"request_id", result.RequestID,
	)
	return result
}

func (c *Client) validate(ctx context.Context, document string, retries int) Result {
	var lastErr error
	var requestID string
	attempts := 0

	for attempt := 1; attempt <= retries+1; attempt++ {
		if attempt > 1 {
			c.sleep(ctx, time.Duration(attempt-1)*100*time.Millisecond)
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts = attempt
		requestID = uuid.NewString()
		resp, err := c.post(ctx, document, requestID)
		if err != nil {
			c.metrics.IncrementValidationAttempt("transport")
			c.logger.Warn("validation request failed", "attempt", attempt, "request_id", requestID, "error", err)
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.metrics.IncrementValidationAttempt("transport")
			c.logger.Warn("failed to read validation response", "attempt", attempt, "request_id", requestID, "error", err)
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusServiceUnavailable:
			c.metrics.IncrementValidationAttempt("503")
			c.logger.Warn("validation service unavailable", "attempt", attempt, "request_id", requestID)
			lastErr = fmt.Errorf("validation service returned status %d", resp.StatusCode)
			continue

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			c.metrics.IncrementValidationAttempt("2xx")
			return stamp(parseSuccess(body), requestID, attempts, resp.StatusCode)

		case resp.StatusCode == http.StatusUnprocessableEntity:
			c.metrics.IncrementValidationAttempt("422")
			return stamp(parseRejection(body), requestID, attempts, resp.StatusCode)

		default:
			c.metrics.IncrementValidationAttempt("other")
			return stamp(failure(CodeServiceError, parseError(resp.StatusCode, body)), requestID, attempts, resp.StatusCode)
		}
	}

	msg := "validation service unavailable"
	if lastErr != nil {
		msg = fmt.Sprintf("validation service unavailable after %d attempts: %v", attempts, lastErr)
	}
	return stamp(failure(CodeServiceUnavailable, msg), requestID, attempts, 0)
}

func (c *Client) post(ctx context.Context, document, requestID string) (*http.Response, error) {
	var body []byte
	contentType := "application/xml"
	if c.mode == ModeRaw {
		body = []byte(document)
	} else {
		encoded, err := json.Marshal(ValidateRequest{DocumentContent: document})
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = encoded
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

func parseSuccess(body []byte) Result {
	var resp successResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Valid == nil {
		return failure(CodeInvalidResponse, fmt.Sprintf("undecodable validation response: %s", truncate(body)))
	}
	return Result{Valid: *resp.Valid, Errors: resp.Errors, Warnings: resp.Warnings}
}

func parseRejection(body []byte) Result {
	var resp rejectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return failure(CodeInvalidResponse, fmt.Sprintf("undecodable rejection response: %s", truncate(body)))
	}
	return Result{Valid: false, Errors: resp.Errors, Warnings: resp.Warnings}
}

// parseError builds a message from an unexpected response, using the service's
// error body when it has one.
func parseError(status int, body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Error != "" || errResp.Message != "") {
		return fmt.Sprintf("validation service error (status %d): %s", status, strings.TrimSpace(errResp.Error+" "+errResp.Message))
	}
	return fmt.Sprintf("validation service error (status %d): %s", status, truncate(body))
}

func failure(code, message string) Result {
	return Result{Valid: false, Errors: []Issue{{Code: code, Message: message}}}
}

func stamp(r Result, requestID string, attempts, status int) Result {
	r.RequestID = requestID
	r.Attempts = attempts
	r.StatusCode = status
	return r
}

func truncate(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func outcome(r Result) string {
	switch {
	case r.Valid:
		return "valid"
	case len(r.Errors) > 0 && r.Synthetic():
		return strings.ToLower(r.Errors[0].Code)
	}
	return "invalid"
}
