package kyc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/store"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

// ErrNotApproved blocks money movement until KYC is approved.
var ErrNotApproved = errors.New("kyc is not approved")

const customerType = "individual"

// API is the subset of the backend used for KYC.
type API interface {
	StartKYC(ctx context.Context, req apiclient.KYCRequest) (apiclient.KYCResponse, error)
	KYCStatus(ctx context.Context, gridUserID string) (apiclient.KYCStatusResponse, error)
}

// Service starts KYC sessions and tracks their status. The local cache is
// advisory; gating always refreshes from the provider.
type Service struct {
	api    API
	store  store.Store
	logger *slog.Logger
}

// NewService creates a new KYC service.
func NewService(api API, st store.Store, logger *slog.Logger) *Service {
	return &Service{api: api, store: st, logger: logger}
}

// Start opens a hosted KYC session and returns its links.
func (s *Service) Start(ctx context.Context, gridUserID, email, fullName string) (apiclient.KYCResponse, error) {
	if err := validation.FullName(fullName); err != nil {
		return apiclient.KYCResponse{}, err
	}
	resp, err := s.api.StartKYC(ctx, apiclient.KYCRequest{
		GridUserID: gridUserID,
		Email:      email,
		FullName:   strings.TrimSpace(fullName),
		Type:       customerType,
	})
	if err != nil {
		return apiclient.KYCResponse{}, err
	}
	if resp.Status != "" {
		s.cache(ctx, ParseStatus(resp.Status))
	}
	return resp, nil
}

// Refresh fetches the authoritative status and updates the cache.
func (s *Service) Refresh(ctx context.Context, gridUserID string) (Status, error) {
	resp, err := s.api.KYCStatus(ctx, gridUserID)
	if err != nil {
		return StatusUnknown, err
	}
	status := ParseStatus(resp.Status)
	if status == StatusUnknown {
		s.logger.Warn("unrecognised kyc status", slog.String("status", resp.Status))
	}
	s.cache(ctx, status)
	return status, nil
}

// Cached returns the last known status without a network call.
func (s *Service) Cached(ctx context.Context) (Status, error) {
	status, err := store.GetJSON[Status](ctx, s.store, store.KeyKYCStatus)
	if errors.Is(err, store.ErrNotFound) {
		return StatusNotStarted, nil
	}
	if err != nil {
		return StatusUnknown, err
	}
	return status, nil
}

// RequireApproved refreshes the status and fails with ErrNotApproved unless
// it is approved.
func (s *Service) RequireApproved(ctx context.Context, gridUserID string) (Status, error) {
	status, err := s.Refresh(ctx, gridUserID)
	if err != nil {
		return status, err
	}
	if status != StatusApproved {
		return status, fmt.Errorf("%w: %s", ErrNotApproved, status)
	}
	return status, nil
}

func (s *Service) cache(ctx context.Context, status Status) {
	if err := store.SetJSON(ctx, s.store, store.KeyKYCStatus, status); err != nil {
		s.logger.Warn("cache kyc status", slog.Any("error", err))
	}
}
