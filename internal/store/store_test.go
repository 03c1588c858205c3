package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eas-pay/eas_wallet/internal/config"
	"github.com/eas-pay/eas_wallet/internal/logging"
)

type account struct {
	Address string `json:"address"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyEmail)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyEmail, []byte(`"a@b.co"`)))
	got, err := s.Get(ctx, KeyEmail)
	require.NoError(t, err)
	assert.Equal(t, `"a@b.co"`, string(got))

	require.NoError(t, SetJSON(ctx, s, KeyAccountInfo, account{Address: "0xabc"}))
	acct, err := GetJSON[account](ctx, s, KeyAccountInfo)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", acct.Address)

	require.NoError(t, DeleteAll(ctx, s, KeyEmail, KeyAccountInfo, KeyBalance))
	_, err = s.Get(ctx, KeyEmail)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestFileStorePersistsEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet", "store.age")
	s, err := NewFile(path, "correct horse", WithScryptWorkFactor(10))
	require.NoError(t, err)
	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, KeyGridUserID, []byte(`"grid-user-1"`)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "grid-user-1")

	reopened, err := NewFile(path, "correct horse")
	require.NoError(t, err)
	got, err := reopened.Get(ctx, KeyGridUserID)
	require.NoError(t, err)
	assert.Equal(t, `"grid-user-1"`, string(got))

	_, err = NewFile(path, "wrong passphrase")
	require.Error(t, err)
}

func TestBadgerStoreReopens(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadger(BadgerConfig{Dir: dir, Passphrase: "secret"})
	require.NoError(t, err)
	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, KeyKYCStatus, []byte(`"approved"`)))
	require.NoError(t, s.Close())

	reopened, err := NewBadger(BadgerConfig{Dir: dir, Passphrase: "secret"})
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, KeyKYCStatus)
	require.NoError(t, err)
	assert.Equal(t, `"approved"`, string(got))
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(config.Client{StoreBackend: config.StoreMemory}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(config.Client{StoreBackend: "s3"}, logging.Discard())
	require.Error(t, err)
}
