package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/argon2"
)

const (
	saltFile     = "store.salt"
	saltLen      = 16
	badgerKeyLen = 32
)

// BadgerConfig configures the BadgerDB backend.
type BadgerConfig struct {
	Dir        string
	Passphrase string
	Logger     *slog.Logger
}

// Badger stores values in an encrypted BadgerDB. The AES key is derived from
// the passphrase with argon2id and a per-store random salt.
type Badger struct {
	db *badger.DB
}

// NewBadger opens or creates the database in cfg.Dir.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	if cfg.Passphrase == "" {
		return nil, errors.New("badger store passphrase is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	salt, err := loadOrCreateSalt(filepath.Join(cfg.Dir, saltFile))
	if err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(cfg.Passphrase), salt, 1, 64*1024, 4, badgerKeyLen)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Dir, "data")).
		WithEncryptionKey(key).
		WithIndexCacheSize(16 << 20).
		WithSyncWrites(true).
		WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltLen {
			return nil, fmt.Errorf("store salt at %s is corrupt", path)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read store salt: %w", err)
	}
	salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate store salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write store salt: %w", err)
	}
	return salt, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return result, err
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's logs to slog. Info and debug chatter is
// demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}
