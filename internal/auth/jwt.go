// Package auth provides the service's own bearer-token layer and the
// Google identity verification it is built on.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client hits /login?profile=user|organiser → redirected to Google
// 2. Google calls back with a code; the server exchanges it for an ID token
// 3. The ID token is verified against Google's published signing keys
// 4. The server issues its own HS256 JWT scoped to one profile kind
// 5. On subsequent API calls, middleware reads the Authorization header,
//    validates the JWT, and checks the profile claim against the route
//
// The service token is stateless: everything needed to authorize a request
// (identity, profile kind, expiry) travels inside the signed token. The
// signature ensures nobody can tamper with it without the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"profile-service/internal/model"
)

// TokenTTL is the fixed validity window of every issued token.
// It is deliberately not configurable at runtime: expiry is part of the
// token contract, and there is no server-side revocation to fall back on.
const TokenTTL = time.Hour

const issuerName = "profile-service"

var (
	// ErrExpired means the token's exp claim is in the past.
	ErrExpired = errors.New("auth: token expired")
	// ErrInvalidToken covers bad signatures, malformed tokens and tokens
	// whose profile claim is not one of the two known kinds.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrProfileMismatch means the token is valid but was issued for the
	// other profile kind. Handlers map this to 403, not 401: the caller
	// is authenticated, just not entitled.
	ErrProfileMismatch = errors.New("auth: token profile mismatch")
)

// Claims is the payload of a service-issued bearer token.
// It embeds jwt.RegisteredClaims for the standard iat/exp/iss fields.
type Claims struct {
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Picture string            `json:"picture"`
	Profile model.ProfileKind `json:"profile"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the service's bearer tokens.
//
// It holds the HMAC secret used for both operations. The secret is
// process-wide configuration loaded once at startup and never rotated
// during the process lifetime; rotating it invalidates every outstanding
// token with no grace period.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a TokenCodec with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Issue creates and signs a token binding the verified identity to one
// profile kind. exp is always iat + TokenTTL.
//
// Signing algorithm: HS256 (HMAC-SHA256), symmetric - the same key signs
// and verifies. Fine for a single-service deployment like this one.
func (c *TokenCodec) Issue(identity Identity, kind model.ProfileKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown profile kind %q", ErrInvalidToken, kind)
	}

	now := time.Now()
	claims := Claims{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
		Profile: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Decode parses and verifies a token without requiring a particular
// profile kind. Used for operations that accept either kind as caller
// (cross-principal reads). Signature and expiry are still enforced, and
// the profile claim must be one of the two known kinds.
//
// Decoding is idempotent and side-effect free: the same unexpired token
// yields the same claims every time.
func (c *TokenCodec) Decode(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC. Without this an
			// attacker could try an algorithm confusion attack.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// The library verifies the signature before validating claims, so
		// an expired error here means the signature already checked out.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	if !claims.Profile.Valid() {
		return nil, fmt.Errorf("%w: unknown profile claim %q", ErrInvalidToken, claims.Profile)
	}

	return claims, nil
}

// Verify decodes the token and additionally requires its profile claim to
// equal requiredKind. This is the core authorization primitive: a token
// issued for a user must never authorize an organiser-scoped operation,
// and vice versa.
//
// Check order: signature, then expiry (both inside Decode), then profile.
// Nothing is read from the claims before the signature has been verified.
func (c *TokenCodec) Verify(tokenStr string, requiredKind model.ProfileKind) (*Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil, err
	}

	if claims.Profile != requiredKind {
		return nil, fmt.Errorf("%w: token is for %q, operation requires %q",
			ErrProfileMismatch, claims.Profile, requiredKind)
	}

	return claims, nil
}
