package repository

import (
	"context"

	"profile-service/internal/model"
)

// ProfileRepository is the record-store boundary the auth core calls into.
// Every method is scoped to one profile kind: the same email may exist
// independently under both kinds and the store never merges them.
//
// Implementations return apperror.NotFound when a lookup legitimately
// matches nothing, and a plain wrapped error when the store itself fails.
// Callers rely on that distinction to separate 404 from 500.
type ProfileRepository interface {
	Create(ctx context.Context, kind model.ProfileKind, profile *model.Profile) error
	GetByID(ctx context.Context, kind model.ProfileKind, id string) (*model.Profile, error)
	GetByEmail(ctx context.Context, kind model.ProfileKind, email string) (*model.Profile, error)
	Update(ctx context.Context, kind model.ProfileKind, profile *model.Profile) error
	DeleteByEmail(ctx context.Context, kind model.ProfileKind, email string) error
}
