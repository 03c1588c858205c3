package stamp

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// SchemeP256 identifies ECDSA P-256 over SHA-256 stamps.
const SchemeP256 = "SIGNATURE_SCHEME_TK_API_P256"

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	// ErrPublicKeyMismatch is an integrity failure. Callers must abort.
	ErrPublicKeyMismatch = errors.New("derived public key does not match expected key")
	ErrInvalidSignature  = errors.New("invalid stamp signature")
)

// Stamp is the signature envelope attached to a submitted payload.
type Stamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// Stamper signs payloads with raw P-256 key material.
type Stamper struct {
	key       *ecdsa.PrivateKey
	publicKey string
}

// NewStamper derives the public key from a hex encoded P-256 scalar.
func NewStamper(privateKeyHex string) (*Stamper, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	uncompressed := priv.PublicKey().Bytes()
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(uncompressed[1:33]),
			Y:     new(big.Int).SetBytes(uncompressed[33:65]),
		},
		D: new(big.Int).SetBytes(priv.Bytes()),
	}
	return &Stamper{key: key, publicKey: hex.EncodeToString(compress(uncompressed))}, nil
}

// PublicKey returns the derived compressed public key as hex.
func (s *Stamper) PublicKey() string {
	return s.publicKey
}

// VerifyExpected fails with ErrPublicKeyMismatch when the derived key differs
// from expected. expected may be compressed or uncompressed hex.
func (s *Stamper) VerifyExpected(expected string) error {
	want, err := normalizePublicKey(expected)
	if err != nil {
		return err
	}
	if !strings.EqualFold(want, s.publicKey) {
		return fmt.Errorf("%w: derived %s, expected %s", ErrPublicKeyMismatch, s.publicKey, want)
	}
	return nil
}

// Stamp signs the SHA-256 digest of payload and returns a DER signature as hex.
func (s *Stamper) Stamp(payload []byte) (Stamp, error) {
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return Stamp{}, fmt.Errorf("sign payload: %w", err)
	}
	return Stamp{
		PublicKey: s.publicKey,
		Scheme:    SchemeP256,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// StampJSON stamps the compact JSON encoding of v. Raw JSON input keeps its
// key order.
func (s *Stamper) StampJSON(v any) (Stamp, json.RawMessage, error) {
	payload, err := CanonicalJSON(v)
	if err != nil {
		return Stamp{}, nil, err
	}
	st, err := s.Stamp(payload)
	if err != nil {
		return Stamp{}, nil, err
	}
	return st, payload, nil
}

// CanonicalJSON returns the compact encoding of v.
func CanonicalJSON(v any) (json.RawMessage, error) {
	var raw []byte
	switch b := v.(type) {
	case json.RawMessage:
		raw = b
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		raw = encoded
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("payload is not valid json: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks st against payload using the public key carried in the stamp.
func Verify(payload []byte, st Stamp) error {
	if st.Scheme != SchemeP256 {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSignature, st.Scheme)
	}
	compressed, err := normalizePublicKey(st.PublicKey)
	if err != nil {
		return err
	}
	raw, _ := hex.DecodeString(compressed)
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
	if x == nil {
		return ErrInvalidPublicKey
	}
	sig, err := hex.DecodeString(st.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(payload)
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return ErrInvalidSignature
	}
	return nil
}
