package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

const secretBytes = 32

// SessionClaims is the payload of a session token. IsAdmin is a snapshot for
// the client's convenience; the validator never trusts it.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	IsAdmin       bool   `json:"is_admin"`
	SessionSecret string `json:"session_secret"`
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(key, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenIssuer{key: []byte(key), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue mints a token bound to user and the raw session secret.
func (t *TokenIssuer) Issue(user *domain.User, secret string) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:         user.Email,
		IsAdmin:       user.IsAdmin,
		SessionSecret: secret,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry.
func (t *TokenIssuer) Parse(token string) (*SessionClaims, error) {
	return t.parse(token, jwt.WithExpirationRequired())
}

// ParseIgnoringExpiry verifies signature and issuer only. Logout accepts
// expired tokens so a client can always sign out.
func (t *TokenIssuer) ParseIgnoringExpiry(token string) (*SessionClaims, error) {
	return t.parse(token, jwt.WithoutClaimsValidation())
}

func (t *TokenIssuer) parse(token string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	if claims.Issuer != t.issuer || claims.Subject == "" || claims.SessionSecret == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	return claims, nil
}

// newSecret returns a fresh high-entropy session secret.
func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// digest is what the credential store keeps in place of the raw secret.
func digest(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// secretMatches compares a raw secret against the stored digest. A nil
// digest never matches.
func secretMatches(secret string, stored *string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest(secret)), []byte(*stored)) == 1
}
