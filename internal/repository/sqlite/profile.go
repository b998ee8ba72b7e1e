package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"profile-service/internal/apperror"
	"profile-service/internal/model"
	"profile-service/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

// Create inserts a new profile row under the given kind's table.
//
// Identifier policy: a client-supplied legacy short code (e.g. "U001") is
// kept as-is; when the ID is empty a UUID is generated. A duplicate ID
// within the same table is a conflict, not an upsert. The duplicate check
// is the PRIMARY KEY itself rather than a pre-check query, so two
// concurrent creates with the same ID cannot both pass.
func (db *DB) Create(ctx context.Context, kind model.ProfileKind, profile *model.Profile) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, name, email, phone_no, address, age, hashed_pswd, pic_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		profile.ID,
		profile.Name,
		profile.Email,
		profile.PhoneNo,
		profile.Address,
		profile.Age,
		profile.HashedPswd,
		profile.PicURL,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(string(kind), profile.ID)
		}
		return fmt.Errorf("sqlite: inserting %s %s: %w", kind, profile.ID, err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE/PRIMARY KEY
// constraint failure. The driver exposes no typed constraint error, so
// the message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a profile by its opaque identifier.
// Returns apperror.NotFound when no row matches.
func (db *DB) GetByID(ctx context.Context, kind model.ProfileKind, id string) (*model.Profile, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	return db.scanOne(db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, name, email, phone_no, address, age, hashed_pswd, pic_url, created_at, updated_at
		 FROM %s WHERE id = ?`, table), id),
		kind, id)
}

// GetByEmail retrieves a profile by its email, the natural key on OAuth
// flows. Returns apperror.NotFound when no row matches.
func (db *DB) GetByEmail(ctx context.Context, kind model.ProfileKind, email string) (*model.Profile, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	return db.scanOne(db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, name, email, phone_no, address, age, hashed_pswd, pic_url, created_at, updated_at
		 FROM %s WHERE email = ?`, table), email),
		kind, email)
}

// Update rewrites a profile row identified by its ID.
func (db *DB) Update(ctx context.Context, kind model.ProfileKind, profile *model.Profile) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	profile.UpdatedAt = time.Now()

	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = ?, email = ?, phone_no = ?, address = ?, age = ?, updated_at = ?
		 WHERE id = ?`, table),
		profile.Name,
		profile.Email,
		profile.PhoneNo,
		profile.Address,
		profile.Age,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %s: %w", kind, profile.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %s: %w", kind, profile.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound(string(kind), profile.ID)
	}

	return nil
}

// DeleteByEmail removes every row carrying the email under the kind's
// table. Email is not unique within a table (repeated registration can
// create several rows), but all rows with one email belong to the same
// principal, so deleting the account means deleting them all.
func (db *DB) DeleteByEmail(ctx context.Context, kind model.ProfileKind, email string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE email = ?`, table), email)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", kind, email, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", kind, email, err)
	}
	if affected == 0 {
		return apperror.NotFound(string(kind), email)
	}

	return nil
}

func (db *DB) scanOne(row *sql.Row, kind model.ProfileKind, key string) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.PhoneNo,
		&p.Address,
		&p.Age,
		&p.HashedPswd,
		&p.PicURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(kind), key)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", kind, key, err)
	}
	return &p, nil
}
