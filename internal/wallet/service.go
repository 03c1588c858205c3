package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eas-pay/eas_wallet/internal/amount"
	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/payments"
	"github.com/eas-pay/eas_wallet/internal/store"
)

// ErrStale marks a load superseded by a newer one. Its result must be dropped.
var ErrStale = errors.New("overview superseded by a newer load")

// API is the subset of the backend used by the home screen.
type API interface {
	Balance(ctx context.Context, address string) (apiclient.BalanceResponse, error)
	Transfers(ctx context.Context, gridUserID string) ([]apiclient.Transfer, error)
}

// Service loads the balance and transfer history.
type Service struct {
	api        API
	store      store.Store
	logger     *slog.Logger
	generation atomic.Uint64
	now        func() time.Time
}

// NewService builds a wallet overview service.
func NewService(api API, st store.Store, logger *slog.Logger) *Service {
	return &Service{api: api, store: st, logger: logger, now: time.Now}
}

// Load fetches balance and transfers concurrently. A fresh balance is cached.
// If another Load started meanwhile, ErrStale is returned. An error is also
// returned when both fetches failed.
func (s *Service) Load(ctx context.Context, session identity.Session) (Overview, error) {
	gen := s.generation.Add(1)
	ov := Overview{Generation: gen}

	// Plain group: a failed fetch must not cancel the other one.
	var g errgroup.Group
	g.Go(func() error {
		resp, err := s.api.Balance(ctx, session.SmartAccountAddress())
		if err != nil {
			ov.BalanceErr = err
			return nil
		}
		b := s.toBalance(resp)
		ov.Balance = &b
		return nil
	})
	g.Go(func() error {
		transfers, err := s.api.Transfers(ctx, session.GridUserID)
		if err != nil {
			ov.TransfersErr = err
			return nil
		}
		ov.Transfers = toItems(transfers)
		return nil
	})
	_ = g.Wait()

	if s.generation.Load() != gen {
		s.logger.Debug("dropping stale overview", slog.Uint64("generation", gen))
		return Overview{}, ErrStale
	}

	if ov.Balance != nil {
		if err := store.SetJSON(ctx, s.store, store.KeyBalance, ov.Balance); err != nil {
			s.logger.Warn("cache balance", slog.Any("error", err))
		}
	}
	if ov.BalanceErr != nil && ov.TransfersErr != nil {
		return ov, errors.Join(ov.BalanceErr, ov.TransfersErr)
	}
	return ov, nil
}

// Invalidate marks in-flight loads stale, e.g. when the screen goes away.
func (s *Service) Invalidate() {
	s.generation.Add(1)
}

// CachedBalance returns the last fetched balance.
func (s *Service) CachedBalance(ctx context.Context) (Balance, error) {
	return store.GetJSON[Balance](ctx, s.store, store.KeyBalance)
}

func (s *Service) toBalance(resp apiclient.BalanceResponse) Balance {
	b := Balance{Address: resp.Address, Tokens: resp.Balances, USDC: "0.00", AsOf: s.now().UTC()}
	for _, tb := range resp.Balances {
		if strings.EqualFold(tb.Token, "usdc") {
			decimals := amount.USDCDecimals
			if tb.Decimals != nil {
				decimals = *tb.Decimals
			}
			b.USDC = amount.Display(tb.Amount, decimals)
		}
	}
	return b
}

func toItems(transfers []apiclient.Transfer) []TransferItem {
	items := make([]TransferItem, 0, len(transfers))
	for _, t := range transfers {
		items = append(items, TransferItem{
			ID:              t.ID,
			Amount:          amount.Display(t.Amount, amount.USDCDecimals),
			Currency:        strings.ToUpper(t.Currency),
			Status:          payments.ParseTransferStatus(t.Status),
			Direction:       t.Direction,
			Counterparty:    t.Counterparty,
			TransactionHash: t.TransactionHash,
			CreatedAt:       t.CreatedAt,
		})
	}
	return items
}
