package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"profile-service/internal/apperror"
	"profile-service/internal/auth"
	"profile-service/internal/model"
	"profile-service/internal/repository"
)

// ProfileService handles profile CRUD for both kinds, including the
// ownership rule: when an operation accepts a full profile payload, the
// payload's email must equal the token's email claim. A mismatch is
// Forbidden, not Unauthorized - the caller is authenticated, just not
// entitled to act on that identity.
type ProfileService struct {
	profiles  repository.ProfileRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewProfileService(
	profiles repository.ProfileRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a directly-registered record with local credentials:
// the legacy (non-OAuth) signup path. The password is hashed with a
// randomized salt before anything touches the store.
func (s *ProfileService) Register(ctx context.Context, kind model.ProfileKind, profile *model.Profile, password string) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}
	profile.HashedPswd = hash

	if err := s.create(ctx, kind, profile); err != nil {
		return err
	}

	s.logger.Info("profile registered",
		slog.String("kind", string(kind)),
		slog.String("id", profile.ID),
	)
	return nil
}

// Create stores a profile on behalf of an authenticated caller (the OAuth
// path, no local credentials). tokenEmail is the verified email claim;
// the payload must belong to the same identity.
func (s *ProfileService) Create(ctx context.Context, kind model.ProfileKind, profile *model.Profile, tokenEmail string) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if err := checkOwnership(profile.Email, tokenEmail); err != nil {
		return err
	}

	profile.HashedPswd = ""
	return s.create(ctx, kind, profile)
}

// GetOwn fetches the caller's own record by the token's email claim.
func (s *ProfileService) GetOwn(ctx context.Context, kind model.ProfileKind, tokenEmail string) (*model.Profile, error) {
	profile, err := s.profiles.GetByEmail(ctx, kind, tokenEmail)
	if err != nil {
		return nil, storeErr("looking up "+string(kind), err)
	}
	return profile, nil
}

// GetByID fetches a profile by opaque identifier on behalf of a caller of
// either kind: the cross-principal public read. The returned record's
// hash never reaches the wire (json:"-"), and it is blanked here too so
// no caller of this method can see another principal's hidden fields.
func (s *ProfileService) GetByID(ctx context.Context, kind model.ProfileKind, id string) (*model.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, kind, id)
	if err != nil {
		return nil, storeErr("looking up "+string(kind), err)
	}
	profile.HashedPswd = ""
	return profile, nil
}

// Update rewrites the caller's own record. The payload email must match
// the token email, and the record keeps its stored credentials - an
// update can never overwrite a password hash.
func (s *ProfileService) Update(ctx context.Context, kind model.ProfileKind, profile *model.Profile, tokenEmail string) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if err := checkOwnership(profile.Email, tokenEmail); err != nil {
		return err
	}

	if err := s.profiles.Update(ctx, kind, profile); err != nil {
		return storeErr("updating "+string(kind), err)
	}
	return nil
}

// DeleteOwn removes the caller's own record by the token's email claim.
func (s *ProfileService) DeleteOwn(ctx context.Context, kind model.ProfileKind, tokenEmail string) error {
	if err := s.profiles.DeleteByEmail(ctx, kind, tokenEmail); err != nil {
		return storeErr("deleting "+string(kind), err)
	}

	s.logger.Info("profile deleted",
		slog.String("kind", string(kind)),
		slog.String("email", tokenEmail),
	)
	return nil
}

func (s *ProfileService) create(ctx context.Context, kind model.ProfileKind, profile *model.Profile) error {
	if err := s.profiles.Create(ctx, kind, profile); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return err
		}
		return storeErr("creating "+string(kind), err)
	}
	return nil
}

func checkOwnership(payloadEmail, tokenEmail string) error {
	if !strings.EqualFold(payloadEmail, tokenEmail) {
		return apperror.Forbidden("access denied: payload email does not match the authenticated identity")
	}
	return nil
}

func validateProfile(p *model.Profile) error {
	if p == nil {
		return apperror.ValidationFailed("profile", "profile payload is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(p.Email, "@") {
		return apperror.ValidationFailed("email", "email is not valid")
	}
	if len(p.ID) > 36 {
		return apperror.ValidationFailed("id", "id must be at most 36 characters")
	}
	if p.Age < 0 {
		return apperror.ValidationFailed("age", "age cannot be negative")
	}
	return nil
}

// storeErr keeps NotFound/Conflict taxonomy errors as-is and wraps
// anything else as Unavailable, so a broken store never masquerades as a
// legitimate "not found".
func storeErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Unavailable(op, err)
}
