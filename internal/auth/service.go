package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrRevokedToken means the token predates the user's last logout.
	ErrRevokedToken = errors.New("session token revoked")
)

// Claims are the proxy session claims. Subject holds the Grid user id.
type Claims struct {
	Version int64 `json:"ver"`
	jwt.RegisteredClaims
}

// Session is an issued session token.
type Session struct {
	Token     string    `json:"session_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and verifies proxy session tokens.
type Service struct {
	secret   []byte
	ttl      time.Duration
	versions VersionStore
	now      func() time.Time
}

// NewService constructs a session service.
func NewService(secret string, ttl time.Duration, versions VersionStore) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{secret: []byte(secret), ttl: ttl, versions: versions, now: time.Now}
}

// Issue signs a token for userID bound to the user's current version.
func (s *Service) Issue(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, fmt.Errorf("user id is required")
	}
	ver, err := s.versions.Current(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Version: ver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: exp}, nil
}

// Parse verifies the token and checks it was not revoked.
func (s *Service) Parse(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	current, err := s.versions.Current(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if claims.Version != current {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates every token issued to userID so far.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	_, err := s.versions.Bump(ctx, userID)
	return err
}

// ExtractBearer returns the token of an "Authorization: Bearer" header.
func ExtractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
