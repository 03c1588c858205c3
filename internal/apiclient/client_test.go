package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eas-pay/eas_wallet/internal/notification"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func newTestClient(t *testing.T, baseURL string, notifier notification.Notifier, attempts uint) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		Token:       func(context.Context) string { return "session-token" },
		Notifier:    notifier,
		GetAttempts: attempts,
		RetryDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestPostSendsJSONHeadersAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prepare-payment-intent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var req PrepareRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "25000000", req.Amount)

		_ = json.NewEncoder(w).Encode(PaymentIntent{ID: "pi_1", MPCPayload: `{"a":1}`})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 1)
	intent, err := c.PreparePaymentIntent(context.Background(), PrepareRequest{Amount: "25000000"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
}

func TestGetStripsBodyAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Equal(t, "0xabc", r.URL.Query().Get("address"))
		_, _ = w.Write([]byte(`{"address":"0xabc","balances":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 1)
	var out BalanceResponse
	err := c.Request(context.Background(), PathBalance, RequestOptions{
		Method:         http.MethodGet,
		Query:          map[string][]string{"address": {"0xabc"}},
		Body:           map[string]string{"ignored": "yes"},
		IdempotencyKey: "should-drop",
		Headers:        map[string]string{"Idempotency-Key": "also-drop"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", out.Address)
}

func TestErrorEnvelopeReturnedAsIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"expired","data":{"details":[{"code":"API_KEY_EXPIRED"}]}}`))
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	c := newTestClient(t, srv.URL, notifier, 1)
	_, err := c.Confirm(context.Background(), ConfirmRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected unwrapped *APIError, got %T", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "expired", apiErr.Message)
	assert.True(t, IsSessionExpired(err))
	assert.False(t, IsRateLimited(err))
	assert.Empty(t, notifier.messages)
}

func TestNonJSONErrorUsesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 1)
	_, err := c.Register(context.Background(), "a@b.co")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestNetworkFailureToastsAndReturnsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	notifier := &recordingNotifier{}
	c := newTestClient(t, baseURL, notifier, 1)
	_, err := c.Auth(context.Background(), "a@b.co")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknown))
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, notification.KindToastError, notifier.messages[0].Kind)
}

func TestCanceledContextDoesNotToast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	notifier := &recordingNotifier{}
	c := newTestClient(t, srv.URL, notifier, 1)
	_, err := c.Auth(ctx, "a@b.co")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, notifier.messages)
}

func TestGetRetriesServerErrorsWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"busy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"approved"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 3)
	status, err := c.KYCStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", status.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"missing"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 3)
	_, err := c.Transfers(context.Background(), "user-1")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil, 5)
	_, err := c.Confirm(context.Background(), ConfirmRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForwardReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-key", r.Header.Get("x-grid-api-key"))
		_, _ = w.Write([]byte(`{"passthrough":true}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Headers: map[string]string{"x-grid-api-key": "upstream-key"}})
	require.NoError(t, err)
	raw, err := c.Forward(context.Background(), "/kyc", RequestOptions{Method: http.MethodPost, Body: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"passthrough":true}`, string(raw))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
