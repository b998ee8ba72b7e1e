// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ProfileKind is the two-valued principal category. Every bearer token is
// scoped to exactly one kind, and the same email may independently exist
// as a user record and an organiser record.
type ProfileKind string

const (
	KindUser      ProfileKind = "user"
	KindOrganiser ProfileKind = "organiser"
)

// ParseProfileKind parses a client-supplied profile value (query param or
// form field). Matching is case-insensitive because the legacy API accepted
// "User", "ORGANISER" etc. Anything other than the two known kinds is an
// error; callers map it to 400.
func ParseProfileKind(s string) (ProfileKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindUser):
		return KindUser, nil
	case string(KindOrganiser):
		return KindOrganiser, nil
	default:
		return "", fmt.Errorf("invalid profile kind %q", s)
	}
}

// Valid reports whether k is one of the two known kinds.
// Tokens carrying any other profile value must be rejected.
func (k ProfileKind) Valid() bool {
	return k == KindUser || k == KindOrganiser
}

// Opposite returns the other kind. Used by the resolver when a claimed
// kind doesn't match any record.
func (k ProfileKind) Opposite() ProfileKind {
	if k == KindUser {
		return KindOrganiser
	}
	return KindUser
}

// Title returns the kind capitalised for human-readable messages
// ("User", "Organiser"), matching the legacy response wording.
func (k ProfileKind) Title() string {
	if len(k) == 0 {
		return ""
	}
	return strings.ToUpper(string(k[0])) + string(k[1:])
}

// Profile represents one row in a kind's table (user_tab or org_tab).
//
// IDENTIFIER POLICY:
// Two generations of identifiers coexist. Legacy records carry short
// client-assigned codes (≤5 chars, e.g. "U001"); records created without
// an explicit ID get a generated UUID. Lookups use the email as the
// natural key on OAuth flows and the opaque ID on cross-principal reads.
// Email is not unique within a table; rows sharing an email are treated
// as one principal (email-keyed deletes remove all of them).
//
// HashedPswd is only set for directly-registered (non-OAuth) records and
// carries `json:"-"` so it can never be serialised to a client, whichever
// lookup path returned the record.
type Profile struct {
	ID         string    `json:"id"        db:"id"`
	Name       string    `json:"name"      db:"name"`
	Email      string    `json:"email"     db:"email"`
	PhoneNo    string    `json:"phoneNo"   db:"phone_no"`
	Address    string    `json:"address"   db:"address"`
	Age        int       `json:"age"       db:"age"`
	HashedPswd string    `json:"-"         db:"hashed_pswd"` // legacy local-credential path only
	PicURL     string    `json:"picUrl,omitempty" db:"pic_url"` // OAuth path only
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
