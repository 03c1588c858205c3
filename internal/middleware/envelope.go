package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

// Locals keys set by the middleware chain.
const (
	LocalRequestID = "request_id"
	LocalUserID    = "grid_user_id"
)

// Reject writes the error envelope with its status.
func Reject(c *fiber.Ctx, apiErr *apiclient.APIError) error {
	return c.Status(apiErr.Status).JSON(apiErr)
}

// ErrorHandler renders every unhandled error as an error envelope so clients
// only ever decode one error shape.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if apiErr, ok := apiclient.AsAPIError(err); ok {
			return Reject(c, apiErr)
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Reject(c, &apiclient.APIError{Status: fe.Code, Message: fe.Message})
		}
		logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		return Reject(c, &apiclient.APIError{Status: http.StatusInternalServerError, Message: "internal error"})
	}
}

// UserID returns the authenticated Grid user id, if any.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
