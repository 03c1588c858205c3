package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/middleware"
)

// forwarder relays app requests to the upstream Grid API.
type forwarder struct {
	upstream *apiclient.Client
	metrics  *middleware.Metrics
	logger   *slog.Logger
}

// call forwards the current request to endpoint and returns the raw upstream
// body. Failures come back as the envelope to render.
func (f *forwarder) call(c *fiber.Ctx, endpoint string, body []byte) (json.RawMessage, *apiclient.APIError) {
	opts := apiclient.RequestOptions{Method: c.Method()}
	if c.Method() == fiber.MethodGet {
		query := url.Values{}
		for k, v := range c.Queries() {
			query.Set(k, v)
		}
		opts.Query = query
	} else {
		if len(body) == 0 {
			body = []byte("{}")
		}
		opts.Body = json.RawMessage(body)
		opts.IdempotencyKey = c.Get("Idempotency-Key")
	}

	raw, err := f.upstream.Forward(c.UserContext(), endpoint, opts)
	if err == nil {
		return raw, nil
	}
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		f.metrics.UpstreamError(endpoint, "api")
		return nil, apiErr
	}
	f.metrics.UpstreamError(endpoint, "transport")
	if !errors.Is(err, apiclient.ErrUnknown) {
		f.logger.Warn("upstream call aborted", slog.String("endpoint", endpoint), slog.Any("error", err))
	}
	return nil, &apiclient.APIError{Status: http.StatusBadGateway, Message: "upstream unavailable"}
}

// relay is the plain pass-through handler used by most endpoints.
func (f *forwarder) relay(endpoint string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiErr := ownsUser(c); apiErr != nil {
			return middleware.Reject(c, apiErr)
		}
		raw, apiErr := f.call(c, endpoint, c.Body())
		if apiErr != nil {
			return middleware.Reject(c, apiErr)
		}
		return sendRaw(c, raw)
	}
}

func sendRaw(c *fiber.Ctx, raw json.RawMessage) error {
	if len(raw) == 0 {
		return c.SendStatus(http.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(http.StatusOK).Send(raw)
}

// ownsUser rejects requests that name a grid_user_id other than the session's.
func ownsUser(c *fiber.Ctx) *apiclient.APIError {
	sessionUser := middleware.UserID(c)
	if sessionUser == "" {
		return nil
	}
	claimed := c.Query("grid_user_id")
	if claimed == "" && c.Method() != fiber.MethodGet && len(c.Body()) > 0 {
		var body struct {
			GridUserID string `json:"grid_user_id"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return &apiclient.APIError{Status: http.StatusBadRequest, Message: "invalid JSON body"}
		}
		claimed = body.GridUserID
	}
	if claimed != "" && claimed != sessionUser {
		return &apiclient.APIError{Status: http.StatusForbidden, Message: "grid_user_id does not match session"}
	}
	return nil
}
