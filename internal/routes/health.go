package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/middleware"
)

// RegisterHealthRoutes adds the liveness endpoint.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "disabled"
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			dbStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		status := http.StatusOK
		if (dbStatus != "ok" && dbStatus != "disabled") || (redisStatus != "ok" && redisStatus != "disabled") {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// RegisterReportRoutes accepts client crash reports and writes them to the log.
func RegisterReportRoutes(r fiber.Router, logger *slog.Logger) {
	r.Post(apiclient.PathSentry, func(c *fiber.Ctx) error {
		var report apiclient.ErrorReport
		if err := c.BodyParser(&report); err != nil || report.Message == "" {
			return middleware.Reject(c, &apiclient.APIError{Status: http.StatusBadRequest, Message: "message is required"})
		}
		attrs := []any{
			slog.String("message", report.Message),
			slog.String("level", report.Level),
		}
		if requestID, _ := c.Locals(middleware.LocalRequestID).(string); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		for k, v := range report.Context {
			attrs = append(attrs, slog.String("ctx."+k, v))
		}
		logger.Error("client error report", attrs...)
		return c.SendStatus(http.StatusNoContent)
	})
}
