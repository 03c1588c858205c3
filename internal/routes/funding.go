package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

// RegisterFundingRoutes wires KYC and virtual account endpoints.
func RegisterFundingRoutes(r fiber.Router, fwd *forwarder, idempotency fiber.Handler) {
	r.Post(apiclient.PathKYC, fwd.relay(apiclient.PathKYC))
	r.Get(apiclient.PathKYCStatus, fwd.relay(apiclient.PathKYCStatus))
	r.Get(apiclient.PathVirtualAccounts, fwd.relay(apiclient.PathVirtualAccounts))
	r.Post(apiclient.PathOpenVirtualAccount, idempotency, fwd.relay(apiclient.PathOpenVirtualAccount))
}
