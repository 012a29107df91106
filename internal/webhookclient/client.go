// Package webhookclient posts call events to a relaysheet endpoint, signing
// bodies and retrying failures that cannot have written a row.
package webhookclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/agentworkforce/relaysheet/internal/config"
	"github.com/agentworkforce/relaysheet/internal/httpapi"
)

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Response is a completed webhook call.
type Response struct {
	StatusCode    int
	ContentType   string
	Body          []byte
	CorrelationID string
	Attempts      int
}

// DefaultTimeout outlasts the server's request timeout, so a slow write is
// answered instead of abandoned and retried.
const DefaultTimeout = config.DefaultRequestTimeout + 15*time.Second

type Options struct {
	// Secret signs each body; empty sends unsigned requests.
	Secret          string
	SignatureHeader string
	TimestampHeader string
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	// MaxRetries defaults to 3; a negative value disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type Client struct {
	baseURL         string
	secret          string
	signatureHeader string
	timestampHeader string
	httpClient      *http.Client
	maxRetries      int
	baseDelay       time.Duration
	maxDelay        time.Duration
}

func NewClient(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = config.DefaultSignatureHeader
	}
	if opts.TimestampHeader == "" {
		opts.TimestampHeader = config.DefaultTimestampHeader
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = 3
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:         baseURL,
		secret:          opts.Secret,
		signatureHeader: opts.SignatureHeader,
		timestampHeader: opts.TimestampHeader,
		httpClient:      opts.HTTPClient,
		maxRetries:      opts.MaxRetries,
		baseDelay:       opts.BaseDelay,
		maxDelay:        opts.MaxDelay,
	}
}

// PostJSON marshals body and posts it to requestPath.
func (c *Client) PostJSON(ctx context.Context, requestPath string, body any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, err
	}
	return c.Post(ctx, requestPath, payload)
}

// Post sends a raw JSON body. Posts are not idempotent, so only failures
// where the server cannot have acted are retried: connections that were
// never established, 429 and 503. Any other non-2xx status is returned as
// *HTTPError. Each attempt is signed with a fresh timestamp.
func (c *Client) Post(ctx context.Context, requestPath string, body []byte) (Response, error) {
	correlationID := uuid.NewString()
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+requestPath, bytes.NewReader(body))
		if err != nil {
			return Response{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID)
		if c.secret != "" {
			timestamp := time.Now().UTC().Format(time.RFC3339Nano)
			req.Header.Set(c.timestampHeader, timestamp)
			req.Header.Set(c.signatureHeader, "sha256="+hex.EncodeToString(httpapi.SignBody(c.secret, timestamp, body)))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries && notSent(err) {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return Response{}, waitErr
				}
				continue
			}
			return Response{}, err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return Response{}, readErr
		}

		out := Response{
			StatusCode:    resp.StatusCode,
			ContentType:   resp.Header.Get("Content-Type"),
			Body:          payload,
			CorrelationID: correlationID,
			Attempts:      attempt + 1,
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return out, nil
		}
		if retryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return Response{}, waitErr
			}
			continue
		}
		return out, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}
}

// notSent reports whether err happened while dialing, before any byte of the
// request reached the server.
func notSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// retryableStatus covers responses that promise nothing was processed.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Error == "" {
		return strings.TrimSpace(string(payload))
	}
	if body.Details != "" {
		return body.Error + ": " + body.Details
	}
	return body.Error
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
