package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eas-pay/eas_wallet/internal/amount"
	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/kyc"
	"github.com/eas-pay/eas_wallet/internal/notification"
	"github.com/eas-pay/eas_wallet/internal/recipients"
	"github.com/eas-pay/eas_wallet/internal/stamp"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

// Navigation targets.
const (
	RouteSuccess = "/success"
	RouteLogin   = "/login"
)

const (
	sourceCurrency  = "usdc"
	genericFailure  = "Transfer failed. Please try again."
	kycRequiredText = "Complete identity verification before sending to a bank account."
)

// Phase is a step of a single transfer attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePreparing  Phase = "preparing"
	PhaseStamping   Phase = "stamping"
	PhaseConfirming Phase = "confirming"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// ErrSessionExpired is returned after the flow logged the user out.
var ErrSessionExpired = errors.New("session expired")

// API is the subset of the backend used to move money.
type API interface {
	PreparePaymentIntent(ctx context.Context, req apiclient.PrepareRequest, idempotencyKey string) (apiclient.PaymentIntent, error)
	Confirm(ctx context.Context, req apiclient.ConfirmRequest) (apiclient.ConfirmResponse, error)
}

// Sessions exposes the authenticated session and its signer.
type Sessions interface {
	Current(ctx context.Context) (identity.Session, error)
	Signer(ctx context.Context) (*stamp.Stamper, error)
	Logout(ctx context.Context) error
}

// KYCGate fetches the authoritative KYC status before bank transfers.
type KYCGate interface {
	RequireApproved(ctx context.Context, gridUserID string) (kyc.Status, error)
}

// Recipients stores external account mappings after a bank transfer.
type Recipients interface {
	Save(ctx context.Context, m recipients.Mapping) error
}

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// Deps bundles the collaborators of a Flow.
type Deps struct {
	API        API
	Sessions   Sessions
	KYC        KYCGate
	Recipients Recipients
	Navigator  Navigator
	Notifier   notification.Notifier
	Logger     *slog.Logger
	// Observer receives every phase change.
	Observer func(Phase)
}

// Input is what the user entered on the confirm screen.
type Input struct {
	Amount string
	Rail   string
	// Address is the recipient for the wallet rail.
	Address string
	// ExternalAccountID reuses a saved bank account.
	ExternalAccountID string
	// Bank describes a new bank account when no saved one is used.
	Bank  *apiclient.BankDetails
	Label string
}

// Result describes a confirmed transfer.
type Result struct {
	Intent            apiclient.PaymentIntent
	Confirmation      apiclient.ConfirmResponse
	Status            TransferStatus
	ExternalAccountID string
}

// Flow runs prepare, stamp and confirm for one transfer at a time.
type Flow struct {
	deps  Deps
	mu    sync.Mutex
	phase Phase
}

// NewFlow constructs a transfer flow.
func NewFlow(deps Deps) *Flow {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Flow{deps: deps, phase: PhaseIdle}
}

// Phase returns the phase of the current or last attempt.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Execute validates in, prepares the intent, stamps its payload and confirms
// it. Nothing is retried. On session expiry the user is logged out and sent
// to the login screen.
func (f *Flow) Execute(ctx context.Context, in Input) (Result, error) {
	f.setPhase(PhaseIdle)

	baseUnits, err := amount.UserToBaseUnits(in.Amount)
	if err != nil {
		return Result{}, &validation.Error{Fields: []validation.FieldError{{Field: "amount", Message: err.Error(), Tag: "amount"}}}
	}
	destination, newBank, err := buildDestination(in)
	if err != nil {
		return Result{}, err
	}

	session, err := f.deps.Sessions.Current(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNotAuthenticated) {
			f.navigate(ctx, RouteLogin)
		}
		return Result{}, err
	}

	if destination.Rail != apiclient.RailWallet {
		if _, err := f.deps.KYC.RequireApproved(ctx, session.GridUserID); err != nil {
			if errors.Is(err, kyc.ErrNotApproved) {
				f.setPhase(PhaseFailed)
				f.toast(ctx, notification.KindToastError, kycRequiredText)
				return Result{}, err
			}
			return Result{}, f.fail(ctx, err)
		}
	}

	req := apiclient.PrepareRequest{
		GridUserID: session.GridUserID,
		Amount:     baseUnits,
		Source: apiclient.Source{
			SmartAccountAddress: session.SmartAccountAddress(),
			Currency:            sourceCurrency,
		},
		Destination: destination,
	}
	if newBank {
		req.IdempotencyKey = uuid.NewString()
	}

	f.setPhase(PhasePreparing)
	intent, err := f.deps.API.PreparePaymentIntent(ctx, req, "")
	if err != nil {
		return Result{}, f.fail(ctx, err)
	}

	f.setPhase(PhaseStamping)
	mpcPayload, err := f.stampPayload(ctx, intent)
	if err != nil {
		return Result{}, f.fail(ctx, err)
	}

	intentPayload := intent.IntentPayload
	if intentPayload == "" {
		intentPayload = intent.ID
	}

	f.setPhase(PhaseConfirming)
	confirmation, err := f.deps.API.Confirm(ctx, apiclient.ConfirmRequest{
		IntentPayload: intentPayload,
		MPCPayload:    mpcPayload,
	})
	if err != nil {
		return Result{}, f.fail(ctx, err)
	}

	result := Result{
		Intent:            intent,
		Confirmation:      confirmation,
		Status:            ParseTransferStatus(firstNonEmpty(confirmation.Status, intent.Status)),
		ExternalAccountID: firstNonEmpty(intent.ExternalAccountID, intent.Destination.ExternalAccountID, in.ExternalAccountID),
	}

	if destination.Rail != apiclient.RailWallet && result.ExternalAccountID != "" && f.deps.Recipients != nil {
		mapping := recipients.Mapping{
			GridUserID:        session.GridUserID,
			ExternalAccountID: result.ExternalAccountID,
			Label:             in.Label,
		}
		if err := f.deps.Recipients.Save(ctx, mapping); err != nil {
			f.deps.Logger.Warn("save external account mapping", slog.Any("error", err))
		}
	}

	f.setPhase(PhaseDone)
	f.deps.Logger.Info("transfer confirmed",
		slog.String("intent_id", intent.ID),
		slog.String("status", string(result.Status)),
	)
	f.toast(ctx, notification.KindToastSuccess, "Transfer submitted")
	f.navigate(ctx, RouteSuccess)
	return result, nil
}

// stampPayload signs the parsed mpc payload and encodes the confirm body.
func (f *Flow) stampPayload(ctx context.Context, intent apiclient.PaymentIntent) (string, error) {
	if intent.MPCPayload == "" {
		return "", fmt.Errorf("prepared intent %s has no mpc payload", intent.ID)
	}
	requestParameters, err := stamp.CanonicalJSON(intent.MPCPayload)
	if err != nil {
		return "", fmt.Errorf("parse mpc payload: %w", err)
	}

	signer, err := f.deps.Sessions.Signer(ctx)
	if err != nil {
		return "", err
	}
	st, err := signer.Stamp(requestParameters)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(struct {
		RequestParameters json.RawMessage `json:"requestParameters"`
		Stamp             stamp.Stamp     `json:"stamp"`
	}{requestParameters, st})
	if err != nil {
		return "", fmt.Errorf("encode stamped payload: %w", err)
	}
	return string(encoded), nil
}

// fail maps err onto the user facing outcome and marks the attempt failed.
func (f *Flow) fail(ctx context.Context, err error) error {
	f.setPhase(PhaseFailed)

	if apiclient.IsSessionExpired(err) {
		f.deps.Logger.Warn("session expired during transfer", slog.Any("error", err))
		if logoutErr := f.deps.Sessions.Logout(ctx); logoutErr != nil {
			f.deps.Logger.Error("logout after session expiry", slog.Any("error", logoutErr))
		}
		f.navigate(ctx, RouteLogin)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	switch {
	case errors.Is(err, apiclient.ErrUnknown):
		// the request client already raised a toast
	case errors.Is(err, stamp.ErrPublicKeyMismatch):
		f.deps.Logger.Error("signer integrity check failed", slog.Any("error", err))
		f.toast(ctx, notification.KindToastError, "Signing key mismatch. Please log in again.")
	default:
		if apiErr, ok := apiclient.AsAPIError(err); ok {
			f.toast(ctx, notification.KindToastError, apiErr.UserMessage())
		} else {
			f.toast(ctx, notification.KindToastError, genericFailure)
		}
		f.deps.Logger.Warn("transfer failed", slog.Any("error", err))
	}
	return err
}

func buildDestination(in Input) (apiclient.Destination, bool, error) {
	rail := strings.ToLower(strings.TrimSpace(in.Rail))
	switch rail {
	case apiclient.RailWallet, "":
		address := strings.TrimSpace(in.Address)
		if err := validation.WalletAddress(address); err != nil {
			return apiclient.Destination{}, false, err
		}
		return apiclient.Destination{Rail: apiclient.RailWallet, Currency: sourceCurrency, Address: address}, false, nil
	case apiclient.RailACH, apiclient.RailSEPA:
		if err := validation.Label(in.Label); err != nil {
			return apiclient.Destination{}, false, err
		}
		dest := apiclient.Destination{Rail: rail, Currency: fiatCurrency(rail)}
		if id := strings.TrimSpace(in.ExternalAccountID); id != "" {
			dest.ExternalAccountID = id
			return dest, false, nil
		}
		if in.Bank == nil {
			return apiclient.Destination{}, false, &validation.Error{Fields: []validation.FieldError{{Field: "bank_account", Message: "This field is required", Tag: "required"}}}
		}
		if err := validation.BankDetails(rail, *in.Bank); err != nil {
			return apiclient.Destination{}, false, err
		}
		bank := *in.Bank
		dest.BankAccount = &bank
		return dest, true, nil
	default:
		return apiclient.Destination{}, false, validation.BankDetails(rail, apiclient.BankDetails{})
	}
}

func fiatCurrency(rail string) string {
	if rail == apiclient.RailSEPA {
		return "eur"
	}
	return "usd"
}

func (f *Flow) setPhase(p Phase) {
	f.mu.Lock()
	f.phase = p
	f.mu.Unlock()
	if f.deps.Observer != nil {
		f.deps.Observer(p)
	}
}

func (f *Flow) navigate(ctx context.Context, route string) {
	if f.deps.Navigator != nil {
		f.deps.Navigator.Navigate(ctx, route)
	}
}

func (f *Flow) toast(ctx context.Context, kind, body string) {
	notification.Toast(ctx, f.deps.Notifier, kind, body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
