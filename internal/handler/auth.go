package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"profile-service/internal/auth"
	"profile-service/internal/model"
	"profile-service/internal/service"
)

// AuthHandler manages the Google OAuth login flow, token refresh and the
// legacy email+password endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin     → validate the profile param, redirect to Google
//   - HandleCallback  → verify the returned identity, issue a service token
//   - HandleRefresh   → refresh-token grant, kind resolution, reissue
//   - HandleAuthorize → legacy email+password check
type AuthHandler struct {
	google *auth.GoogleProvider
	tokens *auth.TokenCodec
	authn  *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	google *auth.GoogleProvider,
	tokens *auth.TokenCodec,
	authn *service.AuthService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		google: google,
		tokens: tokens,
		authn:  authn,
		logger: logger,
	}
}

// tokenResponse is the body returned by callback and refresh.
// access_token is this service's own signed token, never the provider's.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// HandleLogin starts the OAuth flow.
//
// HTTP: GET /login?profile=user|organiser
//
// The profile param is mandatory and restricted to the two kinds; any
// other value (or its absence) is a 400 before Google is involved. A
// random state nonce goes into a short-lived HttpOnly cookie so the
// callback can reject forged redirects.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseProfileKind(r.URL.Query().Get("profile"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing or invalid profile query param",
		})
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes: long enough to approve, short enough to limit risk
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state, kind), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /login/auth/callback?profile=xxx&code=yyy&state=zzz
//
// FLOW:
//  1. Validate the state nonce against the cookie (CSRF check)
//  2. Exchange the code for a verified identity + provider refresh token
//  3. Issue a service token scoped to the requested profile kind
//  4. Respond with {access_token, refresh_token}
//
// An ID token without an email claim dies inside the exchange (step 2)
// with a 400; no service token is ever minted from a partial identity.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseProfileKind(r.URL.Query().Get("profile"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing or invalid profile query param",
		})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch or missing state cookie")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid OAuth state",
		})
		return
	}

	// The state nonce is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: provider returned error", slog.String("error", errParam))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "authorization was denied",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing OAuth code",
		})
		return
	}

	identity, refreshToken, err := h.google.Exchange(r.Context(), code, kind)
	if err != nil {
		h.writeVerificationError(w, err)
		return
	}

	accessToken, err := h.tokens.Issue(*identity, kind)
	if err != nil {
		h.logger.Error("oauth callback: issuing token failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "authentication failed",
		})
		return
	}

	h.logger.Info("oauth login completed",
		slog.String("email", identity.Email),
		slog.String("profile", string(kind)),
	)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// HandleRefresh exchanges a provider refresh token for a fresh service
// access token.
//
// HTTP: POST /login/refreshToken?profile=user|organiser
// Body: form-encoded refresh_token
//
// The claimed profile kind is only a starting point: the fresh identity
// is resolved against the record store, and when the email turns out to
// live under the other kind the reissued token carries THAT kind. An
// email in neither table is a 404, not a silently guessed kind.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	claimed, err := model.ParseProfileKind(r.URL.Query().Get("profile"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing or invalid profile query param",
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed form body",
		})
		return
	}

	refreshToken := r.PostFormValue("refresh_token")
	if refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "refresh_token is required",
		})
		return
	}

	identity, err := h.google.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.writeVerificationError(w, err)
		return
	}

	resolved, err := h.authn.ResolveKind(r.Context(), identity.Email, claimed)
	if err != nil {
		writeError(w, err)
		return
	}

	accessToken, err := h.tokens.Issue(*identity, resolved)
	if err != nil {
		h.logger.Error("refresh: issuing token failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "authentication failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
}

// authorizeResponse preserves the legacy endpoint's response shape.
type authorizeResponse struct {
	Message string `json:"message"`
	User    string `json:"User,omitempty"`
}

// HandleAuthorize is the legacy email+password endpoint.
//
// HTTP: POST /authorize
// Body: form-encoded email, password, utype (user|organiser)
//
// Responses keep the legacy contract: 200 with a success message and the
// account name, 401 on a wrong password, 404 when the email is not in the
// selected table, 500 when the store itself is down.
func (h *AuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed form body",
		})
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "email and password are required",
		})
		return
	}

	kind, err := model.ParseProfileKind(r.PostFormValue("utype"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "utype must be user or organiser",
		})
		return
	}

	name, err := h.authn.Authenticate(r.Context(), email, password, kind)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authorizeResponse{
		Message: "Authorization Successful!",
		User:    name,
	})
}

// writeVerificationError maps identity-verification failures onto the
// taxonomy without leaking provider internals.
func (h *AuthHandler) writeVerificationError(w http.ResponseWriter, err error) {
	h.logger.Error("identity verification failed", slog.String("error", err.Error()))

	switch {
	case errors.Is(err, auth.ErrMalformedIDToken):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "identity token is missing required details",
		})
	case errors.Is(err, auth.ErrKeyLookup), errors.Is(err, auth.ErrProviderUnavailable):
		// The provider being down is a 500-class failure, never a 401:
		// the caller's grant was not judged at all.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "unavailable",
			Message: "identity provider unavailable",
		})
	default:
		// Expired, bad signature, rejected grant: all unauthorized.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "identity verification failed",
		})
	}
}
