package wallet

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/logging"
	"github.com/eas-pay/eas_wallet/internal/payments"
	"github.com/eas-pay/eas_wallet/internal/store"
)

type fakeAPI struct {
	balanceErr   error
	transfersErr error
	balances     []apiclient.TokenBalance
	// gate blocks Balance until closed when set.
	gate chan struct{}
}

func (f *fakeAPI) Balance(ctx context.Context, address string) (apiclient.BalanceResponse, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.balanceErr != nil {
		return apiclient.BalanceResponse{}, f.balanceErr
	}
	balances := f.balances
	if balances == nil {
		six := int32(6)
		balances = []apiclient.TokenBalance{{Token: "USDC", Amount: "12340000", Decimals: &six}}
	}
	return apiclient.BalanceResponse{Address: address, Balances: balances}, nil
}

func (f *fakeAPI) Transfers(context.Context, string) ([]apiclient.Transfer, error) {
	if f.transfersErr != nil {
		return nil, f.transfersErr
	}
	return []apiclient.Transfer{
		{ID: "t1", Amount: "25000000", Currency: "usdc", Status: "payment_processed"},
		{ID: "t2", Amount: "1000000", Currency: "usdc", Status: "mystery"},
	}, nil
}

var session = identity.Session{GridUserID: "grid-1", Account: apiclient.AccountInfo{SmartAccountAddress: "0xabc"}}

func TestLoadAppliesBothResults(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(&fakeAPI{}, st, logging.Discard())

	ov, err := svc.Load(context.Background(), session)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ov.Balance == nil || ov.Balance.USDC != "12.34" {
		t.Fatalf("unexpected balance: %#v", ov.Balance)
	}
	if len(ov.Transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(ov.Transfers))
	}
	if ov.Transfers[0].Status != payments.TransferCompleted || ov.Transfers[1].Status != payments.TransferUnknown {
		t.Fatalf("unexpected statuses: %#v", ov.Transfers)
	}
	if ov.Transfers[0].Amount != "25.00" {
		t.Fatalf("unexpected amount: %s", ov.Transfers[0].Amount)
	}

	cached, err := svc.CachedBalance(context.Background())
	if err != nil || cached.USDC != "12.34" {
		t.Fatalf("expected cached balance, got %#v %v", cached, err)
	}
}

func TestLoadPartialSuccess(t *testing.T) {
	svc := NewService(&fakeAPI{balanceErr: errors.New("balance down")}, store.NewMemory(), logging.Discard())

	ov, err := svc.Load(context.Background(), session)
	if err != nil {
		t.Fatalf("partial failure should not fail the load: %v", err)
	}
	if ov.BalanceErr == nil || ov.Balance != nil {
		t.Fatalf("expected balance error")
	}
	if len(ov.Transfers) != 2 {
		t.Fatalf("transfers should still render")
	}
	if _, err := svc.CachedBalance(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed balance must not be cached: %v", err)
	}
}

func TestLoadBothFail(t *testing.T) {
	svc := NewService(&fakeAPI{balanceErr: errors.New("a"), transfersErr: errors.New("b")}, store.NewMemory(), logging.Discard())
	if _, err := svc.Load(context.Background(), session); err == nil {
		t.Fatalf("expected error when both fetches fail")
	}
}

func TestSupersededLoadIsStale(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	svc := NewService(api, store.NewMemory(), logging.Discard())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(context.Background(), session)
		done <- err
	}()

	// wait until the first load registered its generation
	for svc.generation.Load() == 0 {
		runtime.Gosched()
	}
	svc.Invalidate()
	close(api.gate)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale result, got %v", err)
	}
	if _, err := svc.CachedBalance(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("stale balance must not be cached")
	}
}

func TestBalanceDecimals(t *testing.T) {
	zero := int32(0)
	cases := []struct {
		name    string
		balance apiclient.TokenBalance
		want    string
	}{
		{"explicit zero", apiclient.TokenBalance{Token: "usdc", Amount: "12", Decimals: &zero}, "12.00"},
		{"omitted", apiclient.TokenBalance{Token: "usdc", Amount: "12000000"}, "12.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&fakeAPI{balances: []apiclient.TokenBalance{tc.balance}}, store.NewMemory(), logging.Discard())
			ov, err := svc.Load(context.Background(), session)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if ov.Balance == nil || ov.Balance.USDC != tc.want {
				t.Fatalf("expected %s, got %#v", tc.want, ov.Balance)
			}
		})
	}
}
