package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/stamp"
	"github.com/eas-pay/eas_wallet/internal/store"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoPendingChallenge = errors.New("no verification in progress")
	ErrMissingCredentials = errors.New("missing signing credentials")
)

// API is the subset of the backend used for authentication.
type API interface {
	Auth(ctx context.Context, email string) (apiclient.ChallengeResponse, error)
	Register(ctx context.Context, email string) (apiclient.ChallengeResponse, error)
	VerifyOTP(ctx context.Context, req apiclient.VerifyRequest) (apiclient.VerifyResponse, error)
	VerifyOTPAndCreateAccount(ctx context.Context, req apiclient.VerifyRequest) (apiclient.VerifyResponse, error)
	CreateSmartAccount(ctx context.Context, req apiclient.CreateSmartAccountRequest) (apiclient.AccountInfo, error)
	Logout(ctx context.Context) error
}

// Service manages the OTP login lifecycle and the persisted session.
type Service struct {
	api    API
	store  store.Store
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new identity service.
func NewService(api API, st store.Store, logger *slog.Logger) *Service {
	return &Service{api: api, store: st, logger: logger}
}

// StartLogin sends a login OTP to email.
func (s *Service) StartLogin(ctx context.Context, email string) error {
	return s.start(ctx, email, ModeLogin)
}

// StartRegistration sends a sign-up OTP to email.
func (s *Service) StartRegistration(ctx context.Context, email string) error {
	return s.start(ctx, email, ModeRegister)
}

func (s *Service) start(ctx context.Context, email string, mode Mode) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Email(email); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keypair, err := stamp.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := store.SetJSON(ctx, s.store, store.KeyAuthKeypair, keypair); err != nil {
		return err
	}

	challenge, err := s.challenge(ctx, email, mode)
	if err != nil {
		return err
	}
	pending := PendingVerification{Email: email, Mode: mode, OTPID: challenge.OTPID}
	if err := store.SetJSON(ctx, s.store, store.KeyPendingChallenge, pending); err != nil {
		return err
	}
	if err := store.SetJSON(ctx, s.store, store.KeyEmail, email); err != nil {
		return err
	}
	s.logger.Info("otp challenge started", slog.String("mode", string(mode)))
	return nil
}

func (s *Service) challenge(ctx context.Context, email string, mode Mode) (apiclient.ChallengeResponse, error) {
	if mode == ModeRegister {
		return s.api.Register(ctx, email)
	}
	return s.api.Auth(ctx, email)
}

// Resend re-issues the pending challenge. The device keypair is kept.
func (s *Service) Resend(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pending(ctx)
	if err != nil {
		return err
	}
	challenge, err := s.challenge(ctx, pending.Email, pending.Mode)
	if err != nil {
		return err
	}
	if challenge.OTPID != "" {
		pending.OTPID = challenge.OTPID
		if err := store.SetJSON(ctx, s.store, store.KeyPendingChallenge, pending); err != nil {
			return err
		}
	}
	return nil
}

// VerifyOTP exchanges code for a credentials bundle and session. A smart
// account is created when the user has none yet.
func (s *Service) VerifyOTP(ctx context.Context, code string) (Session, error) {
	code = strings.TrimSpace(code)
	if err := validation.OTPCode(code); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pending(ctx)
	if err != nil {
		return Session{}, err
	}
	keypair, err := store.GetJSON[stamp.Keypair](ctx, s.store, store.KeyAuthKeypair)
	if err != nil {
		return Session{}, fmt.Errorf("load device keypair: %w", err)
	}

	req := apiclient.VerifyRequest{
		Email:            pending.Email,
		OTPCode:          code,
		OTPID:            pending.OTPID,
		SessionPublicKey: keypair.PublicKeyUncompressed,
	}
	var resp apiclient.VerifyResponse
	if pending.Mode == ModeRegister {
		resp, err = s.api.VerifyOTPAndCreateAccount(ctx, req)
	} else {
		resp, err = s.api.VerifyOTP(ctx, req)
	}
	if err != nil {
		return Session{}, err
	}

	writes := []struct {
		key   string
		value any
	}{
		{store.KeyCredentialsBundle, resp.CredentialsBundle},
		{store.KeySessionToken, resp.SessionToken},
		{store.KeyGridUserID, resp.GridUserID},
	}
	for _, w := range writes {
		if err := store.SetJSON(ctx, s.store, w.key, w.value); err != nil {
			return Session{}, err
		}
	}

	account := resp.Account
	if account == nil || account.SmartAccountAddress == "" {
		created, err := s.api.CreateSmartAccount(ctx, apiclient.CreateSmartAccountRequest{
			GridUserID: resp.GridUserID,
			Email:      pending.Email,
		})
		if err != nil {
			return Session{}, fmt.Errorf("create smart account: %w", err)
		}
		account = &created
	}
	if account.GridUserID == "" {
		account.GridUserID = resp.GridUserID
	}
	if account.SmartAccountSignerPublicKey == "" {
		account.SmartAccountSignerPublicKey = resp.SignerPublicKey
	}

	if err := store.SetJSON(ctx, s.store, store.KeyAccountInfo, account); err != nil {
		return Session{}, err
	}
	if err := store.SetJSON(ctx, s.store, store.KeySmartAccountAddress, account.SmartAccountAddress); err != nil {
		return Session{}, err
	}
	if err := s.store.Delete(ctx, store.KeyPendingChallenge); err != nil {
		return Session{}, err
	}

	s.logger.Info("session established", slog.String("grid_user_id", resp.GridUserID))
	return Session{
		Email:      pending.Email,
		GridUserID: resp.GridUserID,
		Token:      resp.SessionToken,
		Account:    *account,
	}, nil
}

// State reads the typed session state from the store.
func (s *Service) State(ctx context.Context) (State, error) {
	session, err := s.Current(ctx)
	if err == nil {
		return Authenticated{Session: session}, nil
	}
	if !errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}
	pending, err := s.pending(ctx)
	if err == nil {
		return pending, nil
	}
	if errors.Is(err, ErrNoPendingChallenge) {
		return Unauthenticated{}, nil
	}
	return nil, err
}

// Current returns the active session or ErrNotAuthenticated.
func (s *Service) Current(ctx context.Context) (Session, error) {
	account, err := store.GetJSON[apiclient.AccountInfo](ctx, s.store, store.KeyAccountInfo)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, err
	}
	gridUserID, err := store.GetJSON[string](ctx, s.store, store.KeyGridUserID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, err
	}
	session := Session{GridUserID: gridUserID, Account: account}
	if email, err := store.GetJSON[string](ctx, s.store, store.KeyEmail); err == nil {
		session.Email = email
	}
	if token, err := store.GetJSON[string](ctx, s.store, store.KeySessionToken); err == nil {
		session.Token = token
	}
	return session, nil
}

// Token returns the stored session token, or "" when there is none. It is
// used as the request client's token source.
func (s *Service) Token(ctx context.Context) string {
	token, err := store.GetJSON[string](ctx, s.store, store.KeySessionToken)
	if err != nil {
		return ""
	}
	return token
}

// Signer opens the credentials bundle and returns a stamper for it. A signer
// whose key differs from the account's signer key is an integrity failure.
func (s *Service) Signer(ctx context.Context) (*stamp.Stamper, error) {
	keypair, err := store.GetJSON[stamp.Keypair](ctx, s.store, store.KeyAuthKeypair)
	if err != nil {
		return nil, fmt.Errorf("%w: device keypair: %v", ErrMissingCredentials, err)
	}
	bundle, err := store.GetJSON[string](ctx, s.store, store.KeyCredentialsBundle)
	if err != nil || bundle == "" {
		return nil, fmt.Errorf("%w: credentials bundle", ErrMissingCredentials)
	}

	secret, err := stamp.DecryptBundle(bundle, keypair.PrivateKey)
	if err != nil {
		return nil, err
	}
	signer, err := stamp.NewStamper(hex.EncodeToString(secret))
	if err != nil {
		return nil, err
	}

	account, err := store.GetJSON[apiclient.AccountInfo](ctx, s.store, store.KeyAccountInfo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if expected := account.SmartAccountSignerPublicKey; expected != "" {
		if err := signer.VerifyExpected(expected); err != nil {
			s.logger.Error("signer key mismatch", slog.String("expected", expected), slog.String("derived", signer.PublicKey()))
			return nil, err
		}
	}
	return signer, nil
}

// Logout revokes the session on the proxy when possible and clears local
// session state. External account mappings are kept.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Token(ctx) != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Debug("remote logout failed", slog.Any("error", err))
		}
	}
	return store.DeleteAll(ctx, s.store, store.SessionKeys...)
}

func (s *Service) pending(ctx context.Context) (PendingVerification, error) {
	pending, err := store.GetJSON[PendingVerification](ctx, s.store, store.KeyPendingChallenge)
	if errors.Is(err, store.ErrNotFound) {
		return PendingVerification{}, ErrNoPendingChallenge
	}
	return pending, err
}
