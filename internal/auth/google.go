package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"profile-service/internal/model"
)

// Google OAuth endpoints. Defined here rather than pulled from a metadata
// discovery call: the provider is fixed and these URLs are stable.
const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// DefaultCertsURL is Google's published signing-key set: a JSON map of
	// key ID to PEM-encoded X.509 certificate.
	DefaultCertsURL = "https://www.googleapis.com/oauth2/v1/certs"
)

// Google's id_token issuer appears in both forms depending on the flow.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// providerTimeout bounds every outbound call to Google. A hung provider
// must surface as an error, not hold a worker indefinitely.
const providerTimeout = 10 * time.Second

var (
	// ErrKeyLookup means the provider's key-publishing endpoint was
	// unreachable or returned garbage. Distinct from a bad token.
	ErrKeyLookup = errors.New("auth: fetching google signing keys")
	// ErrInvalidSignature means no signing key in the published set
	// matched the token, or the signature check failed against the
	// matched key.
	ErrInvalidSignature = errors.New("auth: google id token signature invalid")
	// ErrMalformedIDToken means the verified payload is missing required
	// claims (email).
	ErrMalformedIDToken = errors.New("auth: google id token missing required claims")
	// ErrProviderExchange means Google rejected the code or refresh token
	// itself, or returned a response without an id_token. The caller's
	// grant is bad; retrying won't help.
	ErrProviderExchange = errors.New("auth: google token exchange rejected")
	// ErrProviderUnavailable means the token endpoint could not be
	// reached or errored. Distinct from a rejected grant: the caller did
	// nothing wrong and may retry.
	ErrProviderUnavailable = errors.New("auth: google unavailable")
)

// GoogleProvider wraps golang.org/x/oauth2 for the Google authorization
// code flow and verifies the ID tokens Google returns.
//
// VERIFICATION MODEL:
// Every verification fetches Google's current certificate set, matches the
// token header's key ID against it, builds an RSA public key from the
// matched certificate and checks signature, issuer, audience and expiry.
// There is no key caching: one network call per verification. A production
// deployment would cache the set with a refresh interval shorter than
// Google's rotation lead time.
type GoogleProvider struct {
	config   *oauth2.Config
	certsURL string
	client   *http.Client
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
// certsURL overrides the key-set endpoint; pass "" for Google's real one
// (tests point it at a local server).
func NewGoogleProvider(clientID, clientSecret, redirectURL, certsURL string) *GoogleProvider {
	if certsURL == "" {
		certsURL = DefaultCertsURL
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		certsURL: certsURL,
		client:   &http.Client{Timeout: providerTimeout},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The requested profile kind rides along as a query parameter on the
// redirect URI, so Google echoes it back to the callback handler and the
// kind survives the round trip without server-side session state.
//
// access_type=offline and prompt=consent make Google return a refresh
// token on the exchange, which the client needs for /login/refreshToken.
func (p *GoogleProvider) AuthURL(state string, kind model.ProfileKind) string {
	return p.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("redirect_uri", p.redirectFor(kind)),
	)
}

// Exchange trades the authorization code for a verified identity plus the
// provider refresh token. The redirect_uri must match the one used in
// AuthURL exactly, profile parameter included, or Google rejects the code.
func (p *GoogleProvider) Exchange(ctx context.Context, code string, kind model.ProfileKind) (*Identity, string, error) {
	token, err := p.config.Exchange(
		p.boundContext(ctx),
		code,
		oauth2.SetAuthURLParam("redirect_uri", p.redirectFor(kind)),
	)
	if err != nil {
		return nil, "", exchangeErr("code exchange", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", fmt.Errorf("%w: no id_token in token response", ErrProviderExchange)
	}

	identity, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, "", err
	}

	return identity, token.RefreshToken, nil
}

// Refresh exchanges a refresh token for a fresh ID token and re-verifies
// it. The returned identity is as trustworthy as one from a full login:
// it went through the same signature and claim checks.
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*Identity, error) {
	// TokenSource performs the refresh_token grant on the first Token call.
	src := p.config.TokenSource(p.boundContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := src.Token()
	if err != nil {
		return nil, exchangeErr("refresh", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in refresh response", ErrProviderExchange)
	}

	return p.VerifyIDToken(ctx, rawIDToken)
}

// idTokenClaims is the slice of Google's ID-token payload this service
// cares about.
type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// VerifyIDToken cryptographically verifies a raw Google ID token and
// extracts the normalized identity.
//
// Any failure at any stage surfaces as a rejected verification; a partial
// identity is never returned. No claim is inspected before the signature
// has been verified against the fetched key.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		rawIDToken,
		&idTokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidSignature, token.Header["alg"])
			}
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: token has no key id", ErrInvalidSignature)
			}
			return p.fetchSigningKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(p.config.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyLookup), errors.Is(err, ErrInvalidSignature):
			return nil, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("auth: verifying google id token: %w", err)
		}
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: verifying google id token: invalid claims")
	}

	issuerOK := false
	for _, iss := range googleIssuers {
		if claims.Issuer == iss {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		return nil, fmt.Errorf("auth: verifying google id token: unexpected issuer %q", claims.Issuer)
	}

	if claims.Email == "" {
		return nil, ErrMalformedIDToken
	}

	return &Identity{
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// fetchSigningKey downloads Google's current certificate set and returns
// the RSA public key for the given key ID. Called once per verification.
func (p *GoogleProvider) fetchSigningKey(ctx context.Context, kid string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLookup, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: certs endpoint returned status %d", ErrKeyLookup, resp.StatusCode)
	}

	// The endpoint returns {"<kid>": "<PEM certificate>", ...}
	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("%w: decoding certs response: %v", ErrKeyLookup, err)
	}

	certPEM, ok := certs[kid]
	if !ok {
		return nil, fmt.Errorf("%w: no key with id %q in published set", ErrInvalidSignature, kid)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(certPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing certificate for key %q: %v", ErrKeyLookup, kid, err)
	}

	return key, nil
}

// exchangeErr classifies a failed token-endpoint call. A 4xx response
// from Google means the code or refresh token itself was rejected;
// anything else (connection failure, timeout, 5xx) means the provider
// is unavailable and the failure is not the caller's fault.
func exchangeErr(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		if code := retrieveErr.Response.StatusCode; code >= 400 && code < 500 {
			return fmt.Errorf("%w: %s: %v", ErrProviderExchange, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, op, err)
}

// redirectFor appends the profile kind to the configured redirect URL.
func (p *GoogleProvider) redirectFor(kind model.ProfileKind) string {
	u, err := url.Parse(p.config.RedirectURL)
	if err != nil {
		return p.config.RedirectURL
	}
	q := u.Query()
	q.Set("profile", string(kind))
	u.RawQuery = q.Encode()
	return u.String()
}

// boundContext attaches the timeout-bound HTTP client to ctx so the
// oauth2 package uses it for token exchanges. Cancelling the request
// context abandons the outstanding provider call.
func (p *GoogleProvider) boundContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}
