package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/auth"
	"github.com/eas-pay/eas_wallet/internal/middleware"
)

type authRoutes struct {
	fwd      *forwarder
	sessions *auth.Service
	logger   *slog.Logger
}

// RegisterAuthRoutes wires the OTP challenge and verification endpoints.
func RegisterAuthRoutes(r fiber.Router, fwd *forwarder, sessions *auth.Service, rateLimiter fiber.Handler, logger *slog.Logger) {
	h := &authRoutes{fwd: fwd, sessions: sessions, logger: logger}
	r.Post(apiclient.PathAuth, rateLimiter, fwd.relay(apiclient.PathAuth))
	r.Post(apiclient.PathRegister, rateLimiter, fwd.relay(apiclient.PathRegister))
	r.Post(apiclient.PathVerifyOTP, h.verify(apiclient.PathVerifyOTP))
	r.Post(apiclient.PathVerifyOTPAndCreateAccount, h.verify(apiclient.PathVerifyOTPAndCreateAccount))
}

// verify forwards the OTP check and, on success, adds a proxy session token
// bound to the Grid user to the upstream response.
func (h *authRoutes) verify(endpoint string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, apiErr := h.fwd.call(c, endpoint, c.Body())
		if apiErr != nil {
			return middleware.Reject(c, apiErr)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			h.logger.Error("decode verify response", slog.String("endpoint", endpoint), slog.Any("error", err))
			return middleware.Reject(c, &apiclient.APIError{Status: http.StatusBadGateway, Message: "invalid upstream response"})
		}
		var ids struct {
			GridUserID string                 `json:"grid_user_id"`
			Account    *apiclient.AccountInfo `json:"account"`
		}
		_ = json.Unmarshal(raw, &ids)
		userID := ids.GridUserID
		if userID == "" && ids.Account != nil {
			userID = ids.Account.GridUserID
		}
		if userID == "" {
			return middleware.Reject(c, &apiclient.APIError{Status: http.StatusBadGateway, Message: "upstream response has no grid_user_id"})
		}

		session, err := h.sessions.Issue(c.UserContext(), userID)
		if err != nil {
			h.logger.Error("issue session", slog.String("grid_user_id", userID), slog.Any("error", err))
			return middleware.Reject(c, &apiclient.APIError{Status: http.StatusInternalServerError, Message: "could not start session"})
		}
		token, _ := json.Marshal(session.Token)
		fields["session_token"] = token

		h.logger.Info("session started", slog.String("grid_user_id", userID), slog.String("endpoint", endpoint))
		return c.Status(http.StatusOK).JSON(fields)
	}
}

// logout revokes every session token of the caller.
func (h *authRoutes) logout(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if err := h.sessions.Revoke(c.UserContext(), userID); err != nil {
		h.logger.Error("revoke session", slog.String("grid_user_id", userID), slog.Any("error", err))
		return middleware.Reject(c, &apiclient.APIError{Status: http.StatusInternalServerError, Message: "logout failed"})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
