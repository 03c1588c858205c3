package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/intentlog"
	"github.com/eas-pay/eas_wallet/internal/middleware"
)

// PathPaymentIntents lists the caller's audited intents.
const PathPaymentIntents = "/payment-intents"

type paymentRoutes struct {
	fwd     *forwarder
	intents intentlog.Log
	logger  *slog.Logger
	now     func() time.Time
}

// RegisterPaymentRoutes wires intent prepare/confirm and the audit listing.
func RegisterPaymentRoutes(r fiber.Router, fwd *forwarder, intents intentlog.Log, idempotency fiber.Handler, logger *slog.Logger) {
	h := &paymentRoutes{fwd: fwd, intents: intents, logger: logger, now: time.Now}
	r.Post(apiclient.PathPreparePaymentIntent, idempotency, h.prepare)
	r.Post(apiclient.PathConfirm, h.confirm)
	r.Get(PathPaymentIntents, h.list)
}

func (h *paymentRoutes) prepare(c *fiber.Ctx) error {
	if apiErr := ownsUser(c); apiErr != nil {
		return middleware.Reject(c, apiErr)
	}
	raw, apiErr := h.fwd.call(c, apiclient.PathPreparePaymentIntent, c.Body())
	if apiErr != nil {
		return middleware.Reject(c, apiErr)
	}

	var intent apiclient.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil || intent.ID == "" {
		h.logger.Warn("prepared intent not audited", slog.Any("error", err))
		return sendRaw(c, raw)
	}
	err := h.intents.RecordPrepared(c.UserContext(), intentlog.Entry{
		IntentID:   intent.ID,
		GridUserID: middleware.UserID(c),
		Amount:     intent.Amount,
		Rail:       intent.Destination.Rail,
		Status:     intentlog.StatusPrepared,
		PreparedAt: h.now().UTC(),
	})
	if err != nil && !errors.Is(err, intentlog.ErrDuplicateIntent) {
		h.logger.Error("record prepared intent", slog.String("intent_id", intent.ID), slog.Any("error", err))
	}
	return sendRaw(c, raw)
}

func (h *paymentRoutes) confirm(c *fiber.Ctx) error {
	var req apiclient.ConfirmRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.MPCPayload == "" {
		return middleware.Reject(c, &apiclient.APIError{Status: http.StatusBadRequest, Message: "intentPayload and mpcPayload are required"})
	}

	raw, apiErr := h.fwd.call(c, apiclient.PathConfirm, c.Body())
	if apiErr != nil {
		return middleware.Reject(c, apiErr)
	}

	var resp apiclient.ConfirmResponse
	_ = json.Unmarshal(raw, &resp)
	intentID := resp.ID
	if intentID == "" {
		intentID = req.IntentPayload
	}
	err := h.intents.RecordConfirmed(c.UserContext(), middleware.UserID(c), intentID, resp.Status, resp.TransactionHash, h.now().UTC())
	switch {
	case errors.Is(err, intentlog.ErrNotFound):
		h.logger.Warn("confirmed intent was not prepared by this user through this proxy", slog.String("intent_id", intentID))
	case err != nil:
		h.logger.Error("record confirmed intent", slog.String("intent_id", intentID), slog.Any("error", err))
	}
	return sendRaw(c, raw)
}

type intentView struct {
	IntentID        string     `json:"intent_id"`
	Amount          string     `json:"amount"`
	Rail            string     `json:"rail"`
	Status          string     `json:"status"`
	TransactionHash string     `json:"transaction_hash,omitempty"`
	PreparedAt      time.Time  `json:"prepared_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
}

func (h *paymentRoutes) list(c *fiber.Ctx) error {
	entries, err := h.intents.ListByUser(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 50))
	if err != nil {
		h.logger.Error("list intents", slog.Any("error", err))
		return middleware.Reject(c, &apiclient.APIError{Status: http.StatusInternalServerError, Message: "could not list intents"})
	}
	out := make([]intentView, 0, len(entries))
	for _, e := range entries {
		out = append(out, intentView{
			IntentID:        e.IntentID,
			Amount:          e.Amount,
			Rail:            e.Rail,
			Status:          e.Status,
			TransactionHash: e.TransactionHash,
			PreparedAt:      e.PreparedAt,
			ConfirmedAt:     e.ConfirmedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"intents": out})
}
