// Package service - authentication and profile business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → ProfileRepository (DB)
//	                   ↘ PasswordService (bcrypt)
//
// It owns the two decisions the token layer cannot make on its own:
// which profile kind an identity actually belongs to, and whether a
// legacy email+password pair is good.
package service

import (
	"context"
	"errors"
	"log/slog"

	"profile-service/internal/apperror"
	"profile-service/internal/auth"
	"profile-service/internal/model"
	"profile-service/internal/repository"
)

// AuthService handles profile-kind resolution and the legacy
// email+password authentication path.
type AuthService struct {
	profiles  repository.ProfileRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
// Wiring happens once in server.New; nothing is looked up at call time.
func NewAuthService(
	profiles repository.ProfileRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		profiles:  profiles,
		passwords: passwords,
		logger:    logger,
	}
}

// ResolveKind determines which profile kind an email actually belongs to,
// starting from the kind the client claims. Used on the refresh path,
// where the original kind is not re-asserted by a verified token.
//
// The probe order is: claimed kind's table first; if the email is absent
// there, the opposite table. This is a two-kind disambiguation heuristic,
// not a guarantee - when the email exists under both kinds the claimed
// one wins. When it exists under NEITHER kind the result is NotFound;
// silently reporting the opposite kind for a nonexistent record would
// mint a token for a profile that isn't there.
func (s *AuthService) ResolveKind(ctx context.Context, email string, claimed model.ProfileKind) (model.ProfileKind, error) {
	if _, err := s.profiles.GetByEmail(ctx, claimed, email); err == nil {
		return claimed, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return "", apperror.Unavailable("resolving profile kind", err)
	}

	opposite := claimed.Opposite()
	if _, err := s.profiles.GetByEmail(ctx, opposite, email); err == nil {
		s.logger.Info("profile kind resolved to opposite of claim",
			slog.String("claimed", string(claimed)),
			slog.String("resolved", string(opposite)),
		)
		return opposite, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return "", apperror.Unavailable("resolving profile kind", err)
	}

	return "", apperror.NotFound("profile", email)
}

// Authenticate checks a legacy email+password pair against the stored
// bcrypt hash under the given kind's table and returns the account name
// on success.
//
// Failure modes stay distinguishable all the way up:
//   - no record under the kind       → NotFound (404)
//   - store lookup itself errored    → Unavailable (500)
//   - record exists, password wrong  → Unauthorized (401)
//
// The plaintext password is never logged and never compared against an
// ad-hoc hash; bcrypt re-derives from the salt embedded in the stored hash.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, kind model.ProfileKind) (string, error) {
	record, err := s.profiles.GetByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.NotFound(kind.Title(), email)
		}
		return "", apperror.Unavailable("looking up "+string(kind), err)
	}

	// OAuth-created records have no local credentials at all.
	if record.HashedPswd == "" {
		return "", apperror.Unauthorized("no local credentials for " + email)
	}

	if err := s.passwords.Verify(record.HashedPswd, password); err != nil {
		s.logger.Info("password verification failed",
			slog.String("kind", string(kind)),
			slog.String("email", email),
		)
		return "", apperror.Unauthorized("incorrect password for " + email)
	}

	return record.Name, nil
}
