package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/eas-pay/eas_wallet/internal/config"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Fixed keys of the secure store. Values are JSON encoded.
const (
	KeyAuthKeypair         = "auth_keypair"
	KeyCredentialsBundle   = "credentials_bundle"
	KeyAccountInfo         = "account_info"
	KeyEmail               = "email"
	KeyGridUserID          = "grid_user_id"
	KeySmartAccountAddress = "smart_account_address"
	KeyBalance             = "balance"
	KeyKYCStatus           = "kyc_status"
	KeyExternalAccounts    = "external_accounts"
	KeySessionToken        = "session_token"
	KeyPendingChallenge    = "pending_challenge"
)

// SessionKeys are cleared on logout. External account mappings survive.
var SessionKeys = []string{
	KeyAuthKeypair,
	KeyCredentialsBundle,
	KeyAccountInfo,
	KeyEmail,
	KeyGridUserID,
	KeySmartAccountAddress,
	KeyBalance,
	KeyKYCStatus,
	KeySessionToken,
	KeyPendingChallenge,
}

// Store is a secure key-value store on the device.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the value stored under key.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// DeleteAll removes keys, ignoring ones that are already absent.
func DeleteAll(ctx context.Context, s Store, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Open builds the backend selected in cfg.
func Open(cfg config.Client, logger *slog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreFile:
		path := filepath.Join(cfg.StorePath, "store.age")
		s, err := NewFile(path, cfg.StorePassphrase)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened file store", slog.String("path", path))
		return s, nil
	case config.StoreBadger:
		dir := filepath.Join(cfg.StorePath, "badger")
		s, err := NewBadger(BadgerConfig{Dir: dir, Passphrase: cfg.StorePassphrase, Logger: logger})
		if err != nil {
			return nil, err
		}
		logger.Debug("opened badger store", slog.String("path", dir))
		return s, nil
	default:
		return nil, fmt.Errorf("store backend %q is not supported", cfg.StoreBackend)
	}
}
