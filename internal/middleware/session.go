package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/auth"
)

// Session requires a valid, unrevoked bearer session token. Any failure is a
// 401 SESSION_EXPIRED envelope, which the app answers with logout.
func Session(sessions *auth.Service, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return Reject(c, apiclient.NewAPIError(http.StatusUnauthorized, apiclient.CodeSessionExpired, "missing session token"))
		}
		claims, err := sessions.Parse(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrRevokedToken) {
				logger.Error("session lookup failed", slog.Any("error", err))
			}
			return Reject(c, apiclient.NewAPIError(http.StatusUnauthorized, apiclient.CodeSessionExpired, "session expired"))
		}

		c.Locals(LocalUserID, claims.Subject)
		return c.Next()
	}
}
