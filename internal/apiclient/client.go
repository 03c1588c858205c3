package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/eas-pay/eas_wallet/internal/notification"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxResponseBytes     = 4 << 20
	unknownErrorToast    = "Something went wrong. Check your connection and try again."
)

// TokenSource returns the bearer token attached to each request, or "" for none.
type TokenSource func(ctx context.Context) string

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Headers are added to every request, e.g. the upstream API key on the proxy hop.
	Headers  map[string]string
	Token    TokenSource
	Notifier notification.Notifier
	Logger   *slog.Logger
	// GetAttempts bounds attempts for GET requests. Values below 2 disable retries.
	GetAttempts uint
	RetryDelay  time.Duration
}

// Client issues JSON requests against the backend proxy (or, from the proxy,
// against the upstream Grid API).
type Client struct {
	baseURL     string
	http        *http.Client
	headers     map[string]string
	token       TokenSource
	notifier    notification.Notifier
	logger      *slog.Logger
	getAttempts uint
	retryDelay  time.Duration
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        httpClient,
		headers:     opts.Headers,
		token:       opts.Token,
		notifier:    opts.Notifier,
		logger:      logger,
		getAttempts: opts.GetAttempts,
		retryDelay:  delay,
	}, nil
}

// RequestOptions describes a single call.
type RequestOptions struct {
	Method         string
	Query          url.Values
	Body           any
	IdempotencyKey string
	Headers        map[string]string
}

// Request performs the call and decodes a successful JSON body into out.
// Provider failures are returned as *APIError, unwrapped. Transport failures
// raise an error toast and return ErrUnknown.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	raw, err := c.Forward(ctx, endpoint, opts)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// Forward performs the call and returns the undecoded success body.
func (c *Client) Forward(ctx context.Context, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var payload []byte
	if method != http.MethodGet && opts.Body != nil {
		switch b := opts.Body.(type) {
		case json.RawMessage:
			payload = b
		case []byte:
			payload = b
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
			}
			payload = encoded
		}
	}

	attempt := func() (json.RawMessage, error) {
		return c.once(ctx, method, endpoint, opts, payload)
	}

	var (
		body json.RawMessage
		err  error
	)
	if method == http.MethodGet && c.getAttempts > 1 {
		err = retry.Do(
			func() error {
				b, err := attempt()
				if err != nil {
					return err
				}
				body = b
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(c.getAttempts),
			retry.Delay(c.retryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
			retry.OnRetry(func(n uint, err error) {
				c.logger.Debug("retrying request", slog.String("endpoint", endpoint), slog.Uint64("attempt", uint64(n+1)), slog.Any("error", err))
			}),
		)
	} else {
		body, err = attempt()
	}
	if err == nil {
		return body, nil
	}

	var te *transportError
	if errors.As(err, &te) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("request failed without response",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Any("error", te.err),
		)
		notification.Toast(ctx, c.notifier, notification.KindToastError, unknownErrorToast)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnknown, method, endpoint, te.err)
	}
	return nil, err
}

func (c *Client) once(ctx context.Context, method, endpoint string, opts RequestOptions, payload []byte) (json.RawMessage, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if method == http.MethodGet {
		req.Header.Del(idempotencyKeyHeader)
	} else if opts.IdempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, opts.IdempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	return nil, decodeAPIError(resp.StatusCode, raw)
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, apiErr) == nil {
		if apiErr.Status == 0 {
			apiErr.Status = status
		}
		return apiErr
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}

// transportError marks failures where no HTTP response was received.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return false
}
