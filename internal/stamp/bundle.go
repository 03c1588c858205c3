package stamp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidBundle is returned when a credentials bundle cannot be opened.
var ErrInvalidBundle = errors.New("invalid credentials bundle")

const (
	bundleInfo     = "eas_wallet credentials bundle v1"
	pointLen       = 65
	nonceLen       = 12
	bundleKeyBytes = 32
)

// EncryptBundle seals plaintext to the holder of the given uncompressed
// public key: base64url(ephemeral public key || nonce || ciphertext).
func EncryptBundle(plaintext []byte, publicKeyUncompressedHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyUncompressedHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	recipient, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return "", fmt.Errorf("ecdh: %w", err)
	}
	ephemeralPub := ephemeral.PublicKey().Bytes()
	aead, err := bundleAEAD(shared, ephemeralPub)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, pointLen+nonceLen+len(plaintext)+aead.Overhead())
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, ephemeralPub)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// DecryptBundle opens a bundle with the device private key.
func DecryptBundle(bundle, privateKeyHex string) ([]byte, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(bundle), "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if len(raw) < pointLen+nonceLen+16 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidBundle)
	}
	ephemeralPub := raw[:pointLen]
	nonce := raw[pointLen : pointLen+nonceLen]
	ciphertext := raw[pointLen+nonceLen:]

	sender, err := ecdh.P256().NewPublicKey(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	shared, err := priv.ECDH(sender)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	aead, err := bundleAEAD(shared, ephemeralPub)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return plaintext, nil
}

func bundleAEAD(shared, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, bundleKeyBytes)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(bundleInfo)), key); err != nil {
		return nil, fmt.Errorf("derive bundle key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bundle cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
