package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
)

// File keeps all values in a single age-encrypted file protected by a
// scrypt passphrase. The file is rewritten atomically on every change.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase string
	workFactor int
	values     map[string][]byte
}

// FileOption customises a File store.
type FileOption func(*File)

// WithScryptWorkFactor overrides the scrypt cost used when writing.
func WithScryptWorkFactor(logN int) FileOption {
	return func(f *File) { f.workFactor = logN }
}

// NewFile opens or creates the encrypted file at path.
func NewFile(path, passphrase string, opts ...FileOption) (*File, error) {
	if passphrase == "" {
		return nil, errors.New("file store passphrase is required")
	}
	f := &File{path: path, passphrase: passphrase, values: make(map[string][]byte)}
	for _, opt := range opts {
		opt(f)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	encrypted, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer encrypted.Close()

	identity, err := age.NewScryptIdentity(f.passphrase)
	if err != nil {
		return fmt.Errorf("create scrypt identity: %w", err)
	}
	decrypter, err := age.Decrypt(encrypted, identity)
	if err != nil {
		return fmt.Errorf("decrypt store file: %w", err)
	}
	plain, err := io.ReadAll(decrypter)
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	if err := json.Unmarshal(plain, &f.values); err != nil {
		return fmt.Errorf("decode store file: %w", err)
	}
	if f.values == nil {
		f.values = make(map[string][]byte)
	}
	return nil
}

func (f *File) persistLocked() error {
	plain, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	recipient, err := age.NewScryptRecipient(f.passphrase)
	if err != nil {
		return fmt.Errorf("create scrypt recipient: %w", err)
	}
	if f.workFactor > 0 {
		recipient.SetWorkFactor(f.workFactor)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("encrypt store file: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("encrypt store file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize store file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = append([]byte(nil), value...)
	if err := f.persistLocked(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.persistLocked(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }
