package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/config"
	"github.com/eas-pay/eas_wallet/internal/funding"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/kyc"
	"github.com/eas-pay/eas_wallet/internal/logging"
	"github.com/eas-pay/eas_wallet/internal/notification"
	"github.com/eas-pay/eas_wallet/internal/payments"
	"github.com/eas-pay/eas_wallet/internal/recipients"
	"github.com/eas-pay/eas_wallet/internal/store"
	"github.com/eas-pay/eas_wallet/internal/wallet"
)

// app holds the services shared by all commands.
type app struct {
	cfg        config.Client
	logger     *slog.Logger
	store      store.Store
	client     *apiclient.Client
	identity   *identity.Service
	kyc        *kyc.Service
	wallet     *wallet.Service
	funding    *funding.Service
	recipients *recipients.Repository
	notifier   notification.Notifier
	out        io.Writer
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = logging.NewConsole(cmd.ErrOrStderr(), cfg.LogLevel)
	a.notifier = &toastPrinter{w: cmd.ErrOrStderr(), logger: a.logger}

	st, err := store.Open(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open secure store: %w", err)
	}
	a.store = st

	// The token source closes over a.identity, which is set right below.
	client, err := apiclient.New(apiclient.Options{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.RequestTimeout,
		Token:       func(ctx context.Context) string { return a.identity.Token(ctx) },
		Notifier:    a.notifier,
		Logger:      a.logger,
		GetAttempts: cfg.GetAttempts,
		RetryDelay:  cfg.RetryDelay,
	})
	if err != nil {
		return err
	}
	a.client = client
	a.identity = identity.NewService(client, st, a.logger)
	a.kyc = kyc.NewService(client, st, a.logger)
	a.wallet = wallet.NewService(client, st, a.logger)
	a.funding = funding.NewService(client, a.kyc, a.logger)
	a.recipients = recipients.NewRepository(st)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close secure store", slog.Any("error", err))
	}
}

// flow builds a payment flow that reports progress on stderr.
func (a *app) flow(cmd *cobra.Command) *payments.Flow {
	return payments.NewFlow(payments.Deps{
		API:        a.client,
		Sessions:   a.identity,
		KYC:        a.kyc,
		Recipients: a.recipients,
		Navigator:  navigator{w: cmd.OutOrStdout()},
		Notifier:   a.notifier,
		Logger:     a.logger,
		Observer: func(p payments.Phase) {
			switch p {
			case payments.PhasePreparing, payments.PhaseStamping, payments.PhaseConfirming:
				fmt.Fprintf(cmd.ErrOrStderr(), "… %s\n", p)
			}
		},
	})
}

// session returns the current session or a hint to log in.
func (a *app) session(ctx context.Context) (identity.Session, error) {
	sess, err := a.identity.Current(ctx)
	if err != nil {
		return identity.Session{}, fmt.Errorf("not signed in, run `wallet login`: %w", err)
	}
	return sess, nil
}

// reportSessionExpiry logs the user out when the backend rejected the session.
func (a *app) reportSessionExpiry(ctx context.Context, err error) error {
	if apiclient.IsSessionExpired(err) {
		if logoutErr := a.identity.Logout(ctx); logoutErr != nil {
			a.logger.Warn("logout after expiry", slog.Any("error", logoutErr))
		}
		return fmt.Errorf("session expired, run `wallet login`: %w", err)
	}
	return err
}

// toastPrinter shows toasts on stderr and keeps a log record of them.
type toastPrinter struct {
	w      io.Writer
	logger *slog.Logger
}

func (t *toastPrinter) Send(ctx context.Context, m notification.Message) error {
	prefix := "i"
	switch m.Kind {
	case notification.KindToastError:
		prefix = "!"
	case notification.KindToastSuccess:
		prefix = "✓"
	}
	fmt.Fprintf(t.w, "%s %s\n", prefix, m.Body)
	t.logger.Debug("toast", slog.String("kind", m.Kind), slog.String("body", m.Body))
	return nil
}

// navigator turns screen routes into terminal hints.
type navigator struct {
	w io.Writer
}

func (n navigator) Navigate(_ context.Context, route string) {
	switch route {
	case payments.RouteSuccess:
		fmt.Fprintln(n.w, "Transfer submitted.")
	case payments.RouteLogin:
		fmt.Fprintln(n.w, "Your session expired. Run `wallet login` to sign in again.")
	default:
		fmt.Fprintf(n.w, "-> %s\n", route)
	}
}
