package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/garotm/RunOn/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	AppleJWKSURL = "https://appleid.apple.com/auth/keys"
)

// ErrVerification wraps every identity token rejection
var ErrVerification = errors.New("identity verification failed")

// Identity is a user identity asserted by a provider
type Identity struct {
	Subject  string
	Email    string
	Name     string
	Provider string
}

// Verifier validates a provider-issued identity token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier validates Google ID tokens
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrVerification)
	}

	id := &Identity{Subject: payload.Subject, Provider: models.ProviderGoogle}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}

type appleClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AppleVerifier validates Sign in with Apple identity tokens against
// Apple's published signing keys
type AppleVerifier struct {
	clientID string
	keyfunc  jwt.Keyfunc
}

// NewAppleVerifier fetches Apple's JWKS from jwksURL and keeps it refreshed
// for as long as ctx lives.
func NewAppleVerifier(ctx context.Context, clientID, jwksURL string) (*AppleVerifier, error) {
	if jwksURL == "" {
		jwksURL = AppleJWKSURL
	}
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load Apple signing keys: %w", err)
	}
	return NewAppleVerifierWithKeyfunc(clientID, k.Keyfunc), nil
}

func NewAppleVerifierWithKeyfunc(clientID string, kf jwt.Keyfunc) *AppleVerifier {
	return &AppleVerifier{clientID: clientID, keyfunc: kf}
}

func (v *AppleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims := &appleClaims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(appleIssuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrVerification)
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Provider: models.ProviderApple}, nil
}
