package stamp

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Keypair is the device key used to receive credentials bundles. The private
// key never leaves the device.
type Keypair struct {
	PublicKey             string `json:"publicKey"`
	PrivateKey            string `json:"privateKey"`
	PublicKeyUncompressed string `json:"publicKeyUncompressed"`
}

// GenerateKeypair creates a fresh P-256 keypair with hex encoded fields.
func GenerateKeypair() (Keypair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate p256 key: %w", err)
	}
	uncompressed := priv.PublicKey().Bytes()
	return Keypair{
		PublicKey:             hex.EncodeToString(compress(uncompressed)),
		PrivateKey:            hex.EncodeToString(priv.Bytes()),
		PublicKeyUncompressed: hex.EncodeToString(uncompressed),
	}, nil
}

// Validate checks that the private key parses and matches both public forms.
func (k Keypair) Validate() error {
	priv, err := parsePrivateKey(k.PrivateKey)
	if err != nil {
		return err
	}
	uncompressed := priv.PublicKey().Bytes()
	if !strings.EqualFold(k.PublicKeyUncompressed, hex.EncodeToString(uncompressed)) {
		return ErrPublicKeyMismatch
	}
	if !strings.EqualFold(k.PublicKey, hex.EncodeToString(compress(uncompressed))) {
		return ErrPublicKeyMismatch
	}
	return nil
}

func parsePrivateKey(privateKeyHex string) (*ecdh.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return priv, nil
}

// compress turns a 65 byte SEC1 uncompressed point into its 33 byte form.
func compress(uncompressed []byte) []byte {
	out := make([]byte, 33)
	out[0] = 0x02 | (uncompressed[64] & 1)
	copy(out[1:], uncompressed[1:33])
	return out
}

// normalizePublicKey returns the compressed hex form of a compressed or
// uncompressed hex encoded P-256 public key.
func normalizePublicKey(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	switch {
	case len(raw) == 65 && raw[0] == 0x04:
		return hex.EncodeToString(compress(raw)), nil
	case len(raw) == 33 && (raw[0] == 0x02 || raw[0] == 0x03):
		return hex.EncodeToString(raw), nil
	default:
		return "", fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}
}
