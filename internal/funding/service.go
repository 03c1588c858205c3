package funding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/kyc"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

// API is the subset of the backend used for virtual accounts.
type API interface {
	VirtualAccounts(ctx context.Context, gridUserID string) ([]apiclient.VirtualAccount, error)
	OpenVirtualAccount(ctx context.Context, req apiclient.OpenVirtualAccountRequest, idempotencyKey string) (apiclient.VirtualAccount, error)
}

// KYCGate fetches the authoritative KYC status.
type KYCGate interface {
	RequireApproved(ctx context.Context, gridUserID string) (kyc.Status, error)
}

// Service manages bank deposit accounts that fund the smart account.
type Service struct {
	api    API
	kyc    KYCGate
	logger *slog.Logger
}

// NewService constructs a funding service.
func NewService(api API, gate KYCGate, logger *slog.Logger) *Service {
	return &Service{api: api, kyc: gate, logger: logger}
}

// List returns the user's virtual accounts.
func (s *Service) List(ctx context.Context, session identity.Session) ([]apiclient.VirtualAccount, error) {
	return s.api.VirtualAccounts(ctx, session.GridUserID)
}

// Open requests a deposit account in currency. It requires approved KYC and
// carries a fresh idempotency key.
func (s *Service) Open(ctx context.Context, session identity.Session, currency string) (apiclient.VirtualAccount, error) {
	if err := validation.FiatCurrency(currency); err != nil {
		return apiclient.VirtualAccount{}, err
	}
	if _, err := s.kyc.RequireApproved(ctx, session.GridUserID); err != nil {
		return apiclient.VirtualAccount{}, err
	}

	key := uuid.NewString()
	account, err := s.api.OpenVirtualAccount(ctx, apiclient.OpenVirtualAccountRequest{
		GridUserID:          session.GridUserID,
		Currency:            strings.ToLower(strings.TrimSpace(currency)),
		SmartAccountAddress: session.SmartAccountAddress(),
	}, key)
	if err != nil {
		return apiclient.VirtualAccount{}, err
	}
	s.logger.Info("virtual account opened", slog.String("id", account.ID), slog.String("currency", account.Currency))
	return account, nil
}
