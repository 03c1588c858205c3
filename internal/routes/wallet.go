package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

// RegisterWalletRoutes wires smart account, balance and transfer history endpoints.
func RegisterWalletRoutes(r fiber.Router, fwd *forwarder) {
	r.Post(apiclient.PathCreateSmartAccount, fwd.relay(apiclient.PathCreateSmartAccount))
	r.Get(apiclient.PathBalance, fwd.relay(apiclient.PathBalance))
	r.Get(apiclient.PathTransfers, fwd.relay(apiclient.PathTransfers))
}
