package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/kyc"
	"github.com/eas-pay/eas_wallet/internal/notification"
	"github.com/eas-pay/eas_wallet/internal/recipients"
	"github.com/eas-pay/eas_wallet/internal/stamp"
	"github.com/eas-pay/eas_wallet/internal/store"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

// recorder collects calls from every fake so ordering can be asserted.
type recorder struct {
	events []string
}

func (r *recorder) add(e string) { r.events = append(r.events, e) }

type fakeAPI struct {
	rec        *recorder
	intent     apiclient.PaymentIntent
	prepareErr error
	confirmErr error
	prepared   []apiclient.PrepareRequest
	confirmed  []apiclient.ConfirmRequest
}

func (f *fakeAPI) PreparePaymentIntent(_ context.Context, req apiclient.PrepareRequest, _ string) (apiclient.PaymentIntent, error) {
	f.rec.add("prepare")
	f.prepared = append(f.prepared, req)
	if f.prepareErr != nil {
		return apiclient.PaymentIntent{}, f.prepareErr
	}
	return f.intent, nil
}

func (f *fakeAPI) Confirm(_ context.Context, req apiclient.ConfirmRequest) (apiclient.ConfirmResponse, error) {
	f.rec.add("confirm")
	f.confirmed = append(f.confirmed, req)
	if f.confirmErr != nil {
		return apiclient.ConfirmResponse{}, f.confirmErr
	}
	return apiclient.ConfirmResponse{ID: f.intent.ID, Status: "processing"}, nil
}

type fakeSessions struct {
	rec     *recorder
	signer  *stamp.Stamper
	session identity.Session
	authErr error
	logouts int
}

func (f *fakeSessions) Current(context.Context) (identity.Session, error) {
	if f.authErr != nil {
		return identity.Session{}, f.authErr
	}
	return f.session, nil
}

func (f *fakeSessions) Signer(context.Context) (*stamp.Stamper, error) {
	f.rec.add("stamp")
	return f.signer, nil
}

func (f *fakeSessions) Logout(context.Context) error {
	f.rec.add("logout")
	f.logouts++
	return nil
}

type fakeKYC struct {
	status kyc.Status
	calls  int
}

func (f *fakeKYC) RequireApproved(context.Context, string) (kyc.Status, error) {
	f.calls++
	if f.status != kyc.StatusApproved {
		return f.status, kyc.ErrNotApproved
	}
	return f.status, nil
}

type fakeRecipients struct {
	rec   *recorder
	saved []recipients.Mapping
}

func (f *fakeRecipients) Save(_ context.Context, m recipients.Mapping) error {
	f.rec.add("save")
	f.saved = append(f.saved, m)
	return nil
}

type fakeNavigator struct {
	rec    *recorder
	routes []string
}

func (f *fakeNavigator) Navigate(_ context.Context, route string) {
	f.rec.add("navigate " + route)
	f.routes = append(f.routes, route)
}

type fakeNotifier struct {
	messages []notification.Message
}

func (f *fakeNotifier) Send(_ context.Context, m notification.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

type harness struct {
	rec        *recorder
	api        *fakeAPI
	sessions   *fakeSessions
	kyc        *fakeKYC
	recipients *fakeRecipients
	nav        *fakeNavigator
	notifier   *fakeNotifier
	phases     []Phase
	flow       *Flow
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kp, err := stamp.GenerateKeypair()
	require.NoError(t, err)
	signer, err := stamp.NewStamper(kp.PrivateKey)
	require.NoError(t, err)

	rec := &recorder{}
	h := &harness{
		rec: rec,
		api: &fakeAPI{rec: rec, intent: apiclient.PaymentIntent{
			ID:                "pi_1",
			Status:            "pending",
			MPCPayload:        `{"transaction": "0xdeadbeef", "kind": "transfer"}`,
			IntentPayload:     "intent-payload-1",
			ExternalAccountID: "ext-123",
		}},
		sessions: &fakeSessions{rec: rec, signer: signer, session: identity.Session{
			GridUserID: "grid-user-1",
			Account:    apiclient.AccountInfo{SmartAccountAddress: "0xsmartaccount"},
		}},
		kyc:        &fakeKYC{status: kyc.StatusApproved},
		recipients: &fakeRecipients{rec: rec},
		nav:        &fakeNavigator{rec: rec},
		notifier:   &fakeNotifier{},
	}
	h.flow = NewFlow(Deps{
		API:        h.api,
		Sessions:   h.sessions,
		KYC:        h.kyc,
		Recipients: h.recipients,
		Navigator:  h.nav,
		Notifier:   h.notifier,
		Observer:   func(p Phase) { h.phases = append(h.phases, p) },
	})
	return h
}

func achInput() Input {
	return Input{
		Amount: "25.00",
		Rail:   apiclient.RailACH,
		Bank: &apiclient.BankDetails{
			AccountOwnerName: "Ada Lovelace",
			RoutingNumber:    "021000021",
			AccountNumber:    "000123456789",
		},
		Label: "Checking",
	}
}

func TestBankTransferEndToEnd(t *testing.T) {
	h := newHarness(t)

	res, err := h.flow.Execute(context.Background(), achInput())
	require.NoError(t, err)

	assert.Equal(t, []string{"prepare", "stamp", "confirm", "save", "navigate /success"}, h.rec.events)
	assert.Equal(t, []Phase{PhaseIdle, PhasePreparing, PhaseStamping, PhaseConfirming, PhaseDone}, h.phases)

	require.Len(t, h.api.prepared, 1)
	req := h.api.prepared[0]
	assert.Equal(t, "25000000", req.Amount)
	assert.Equal(t, "grid-user-1", req.GridUserID)
	assert.Equal(t, "0xsmartaccount", req.Source.SmartAccountAddress)
	assert.Equal(t, apiclient.RailACH, req.Destination.Rail)
	require.NotNil(t, req.Destination.BankAccount)
	_, err = uuid.Parse(req.IdempotencyKey)
	require.NoError(t, err, "new bank accounts carry a uuid idempotency key")

	require.Len(t, h.api.confirmed, 1)
	confirm := h.api.confirmed[0]
	assert.Equal(t, "intent-payload-1", confirm.IntentPayload)

	var body struct {
		RequestParameters json.RawMessage `json:"requestParameters"`
		Stamp             stamp.Stamp     `json:"stamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(confirm.MPCPayload), &body))
	assert.JSONEq(t, h.api.intent.MPCPayload, string(body.RequestParameters))
	assert.Equal(t, h.sessions.signer.PublicKey(), body.Stamp.PublicKey)
	require.NoError(t, stamp.Verify(body.RequestParameters, body.Stamp))

	require.Len(t, h.recipients.saved, 1)
	assert.Equal(t, recipients.Mapping{GridUserID: "grid-user-1", ExternalAccountID: "ext-123", Label: "Checking"}, h.recipients.saved[0])

	assert.Equal(t, TransferProcessing, res.Status)
	assert.Equal(t, PhaseDone, h.flow.Phase())
}

func TestSessionExpiredDuringPrepare(t *testing.T) {
	h := newHarness(t)
	h.api.prepareErr = &apiclient.APIError{
		Status: http.StatusUnauthorized,
		Data:   apiclient.ErrorData{Details: []apiclient.ErrorDetail{{Code: apiclient.CodeAPIKeyExpired}}},
	}

	_, err := h.flow.Execute(context.Background(), achInput())
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, apiclient.IsSessionExpired(err))

	assert.Equal(t, []string{"prepare", "logout", "navigate /login"}, h.rec.events)
	assert.Empty(t, h.api.confirmed)
	assert.Empty(t, h.recipients.saved)
	assert.Equal(t, PhaseFailed, h.flow.Phase())
}

func TestSessionExpiredDuringConfirm(t *testing.T) {
	h := newHarness(t)
	h.api.confirmErr = apiclient.NewAPIError(http.StatusUnauthorized, apiclient.CodeSessionExpired, "session expired")

	_, err := h.flow.Execute(context.Background(), achInput())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, []string{"prepare", "stamp", "confirm", "logout", "navigate /login"}, h.rec.events)
	assert.Len(t, h.api.confirmed, 1)
	assert.Equal(t, 1, h.sessions.logouts)
}

func TestProviderErrorStaysOnConfirmScreen(t *testing.T) {
	h := newHarness(t)
	h.api.confirmErr = apiclient.NewAPIError(http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient balance")

	_, err := h.flow.Execute(context.Background(), achInput())
	apiErr, ok := apiclient.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_FUNDS", apiErr.Code)

	assert.Empty(t, h.nav.routes)
	assert.Zero(t, h.sessions.logouts)
	require.NotEmpty(t, h.notifier.messages)
	assert.Equal(t, "Insufficient balance", h.notifier.messages[len(h.notifier.messages)-1].Body)
	assert.Equal(t, PhaseFailed, h.flow.Phase())
}

func TestUnknownErrorDoesNotToastTwice(t *testing.T) {
	h := newHarness(t)
	h.api.prepareErr = errors.Join(apiclient.ErrUnknown, errors.New("connection refused"))

	_, err := h.flow.Execute(context.Background(), achInput())
	require.ErrorIs(t, err, apiclient.ErrUnknown)
	assert.Empty(t, h.notifier.messages)
	assert.Empty(t, h.api.confirmed)
}

func TestKYCRequiredForBankTransfers(t *testing.T) {
	h := newHarness(t)
	h.kyc.status = kyc.StatusUnderReview

	_, err := h.flow.Execute(context.Background(), achInput())
	require.ErrorIs(t, err, kyc.ErrNotApproved)
	assert.Empty(t, h.api.prepared)
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, notification.KindToastError, h.notifier.messages[0].Kind)
}

func TestWalletTransferSkipsKYCAndMapping(t *testing.T) {
	h := newHarness(t)
	h.kyc.status = kyc.StatusNotStarted

	_, err := h.flow.Execute(context.Background(), Input{
		Amount:  "12.34",
		Rail:    apiclient.RailWallet,
		Address: "0x52908400098527886E0F7030069857D2E4169EE7",
	})
	require.NoError(t, err)
	assert.Zero(t, h.kyc.calls)
	assert.Empty(t, h.recipients.saved)
	require.Len(t, h.api.prepared, 1)
	assert.Equal(t, "12340000", h.api.prepared[0].Amount)
	assert.Empty(t, h.api.prepared[0].IdempotencyKey)
	assert.Equal(t, []string{RouteSuccess}, h.nav.routes)
}

func TestSavedBankAccountReused(t *testing.T) {
	h := newHarness(t)
	h.api.intent.ExternalAccountID = ""

	_, err := h.flow.Execute(context.Background(), Input{
		Amount:            "5",
		Rail:              apiclient.RailSEPA,
		ExternalAccountID: "ext-saved",
	})
	require.NoError(t, err)
	req := h.api.prepared[0]
	assert.Equal(t, "ext-saved", req.Destination.ExternalAccountID)
	assert.Nil(t, req.Destination.BankAccount)
	assert.Equal(t, "eur", req.Destination.Currency)
	assert.Empty(t, req.IdempotencyKey)
	require.Len(t, h.recipients.saved, 1)
	assert.Equal(t, "ext-saved", h.recipients.saved[0].ExternalAccountID)
}

func TestSavedBankAccountKeepsItsLabel(t *testing.T) {
	h := newHarness(t)
	h.api.intent.ExternalAccountID = ""
	repo := recipients.NewRepository(store.NewMemory())
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, recipients.Mapping{
		GridUserID:        "grid-user-1",
		ExternalAccountID: "ext-saved",
		Label:             "Checking",
	}))
	h.flow.deps.Recipients = repo

	_, err := h.flow.Execute(ctx, Input{
		Amount:            "5",
		Rail:              apiclient.RailACH,
		ExternalAccountID: "ext-saved",
	})
	require.NoError(t, err)

	m, ok, err := repo.ForUser(ctx, "grid-user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ext-saved", m.ExternalAccountID)
	assert.Equal(t, "Checking", m.Label)
}

func TestValidationNeverReachesNetwork(t *testing.T) {
	cases := []Input{
		{Amount: "1.234", Rail: apiclient.RailWallet, Address: "0x52908400098527886E0F7030069857D2E4169EE7"},
		{Amount: "abc", Rail: apiclient.RailWallet, Address: "0x52908400098527886E0F7030069857D2E4169EE7"},
		{Amount: "10", Rail: apiclient.RailWallet, Address: ""},
		{Amount: "10", Rail: apiclient.RailACH},
		{Amount: "10", Rail: apiclient.RailACH, Bank: &apiclient.BankDetails{AccountOwnerName: "A"}},
		{Amount: "10", Rail: "wire"},
	}
	for _, in := range cases {
		h := newHarness(t)
		_, err := h.flow.Execute(context.Background(), in)
		assert.True(t, validation.IsValidationError(err), "input %+v: %v", in, err)
		assert.Empty(t, h.rec.events, "input %+v", in)
	}
}

func TestNotAuthenticatedNavigatesToLogin(t *testing.T) {
	h := newHarness(t)
	h.sessions.authErr = identity.ErrNotAuthenticated

	_, err := h.flow.Execute(context.Background(), achInput())
	require.ErrorIs(t, err, identity.ErrNotAuthenticated)
	assert.Equal(t, []string{RouteLogin}, h.nav.routes)
	assert.Empty(t, h.api.prepared)
}

func TestInvalidMPCPayloadFailsBeforeConfirm(t *testing.T) {
	h := newHarness(t)
	h.api.intent.MPCPayload = "not json"

	_, err := h.flow.Execute(context.Background(), achInput())
	require.Error(t, err)
	assert.Empty(t, h.api.confirmed)
	assert.Equal(t, PhaseFailed, h.flow.Phase())
}

func TestParseTransferStatus(t *testing.T) {
	assert.Equal(t, TransferCompleted, ParseTransferStatus("payment_processed"))
	assert.Equal(t, TransferPending, ParseTransferStatus("PENDING"))
	assert.Equal(t, TransferUnknown, ParseTransferStatus("teleported"))
	assert.True(t, TransferFailed.Terminal())
	assert.False(t, TransferUnknown.Terminal())
}
