// Package identity verifies third-party identity assertions presented at
// sign-in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// TokenValidator is the part of *idtoken.Validator the verifier relies on.
type TokenValidator interface {
	Validate(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google ID tokens against the configured OAuth client.
type GoogleVerifier struct {
	validator TokenValidator
	clientID  string
}

var _ ports.IdentityVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier builds a verifier backed by Google's published signing
// keys.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("google validator: %w", err)
	}
	return &GoogleVerifier{validator: v, clientID: clientID}, nil
}

// NewVerifier returns the Google verifier for clientID, or a DisabledVerifier
// when no client is configured.
func NewVerifier(ctx context.Context, clientID string) (ports.IdentityVerifier, error) {
	if clientID == "" {
		return DisabledVerifier{}, nil
	}
	return NewGoogleVerifier(ctx, clientID)
}

func NewGoogleVerifierWith(validator TokenValidator, clientID string) *GoogleVerifier {
	return &GoogleVerifier{validator: validator, clientID: clientID}
}

// Verify validates the assertion's signature, audience and expiry and maps
// its claims to an external identity.
func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (*domain.ExternalIdentity, error) {
	payload, err := g.validator.Validate(ctx, credential, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("verify google token: %w", err)
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("unexpected issuer %q", payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	email := claimString(payload.Claims, "email")
	if email == "" {
		return nil, errors.New("token has no email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("email not verified")
	}

	name := claimString(payload.Claims, "name")
	if name == "" {
		name = email
	}

	return &domain.ExternalIdentity{
		Subject:   payload.Subject,
		Email:     email,
		Name:      name,
		Picture:   claimString(payload.Claims, "picture"),
		ExpiresAt: time.Unix(payload.Expires, 0).UTC(),
	}, nil
}

// DisabledVerifier rejects every assertion. It stands in for Google sign-in
// in environments without an OAuth client.
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(context.Context, string) (*domain.ExternalIdentity, error) {
	return nil, fmt.Errorf("%w: google sign-in is not configured", domain.ErrInvalidCredential)
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
