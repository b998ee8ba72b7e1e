// Package sqlite implements the profile repository using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no
// C compiler is needed and cross-compilation stays painless. The driver
// registers itself with database/sql under the name "sqlite" via the
// blank import below.
//
// The legacy schema kept two near-identical tables, user_tab and org_tab,
// one per profile kind. That split is preserved here: kind-scoped lookups
// map to a whitelisted table name, never to a discriminator column.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"profile-service/internal/model"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/profiles.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces a real connection now, so a bad path or permissions
	// problem surfaces at startup instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress, which a
	// request-parallel HTTP server needs.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the two kind tables. CREATE TABLE IF NOT EXISTS keeps
// this idempotent, safe on every startup.
//
// Email is indexed but deliberately NOT unique across tables: the same
// email may exist as both a user and an organiser, and disambiguation is
// the resolver's job, not a schema constraint.
func (db *DB) migrate() error {
	for _, table := range []string{userTable, organiserTable} {
		_, err := db.conn.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				email       TEXT NOT NULL,
				phone_no    TEXT NOT NULL DEFAULT '',
				address     TEXT NOT NULL DEFAULT '',
				age         INTEGER NOT NULL DEFAULT 0,
				hashed_pswd TEXT NOT NULL DEFAULT '',
				pic_url     TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_email ON %[1]s(email);
		`, table))
		if err != nil {
			return fmt.Errorf("creating %s table: %w", table, err)
		}
	}
	return nil
}

const (
	userTable      = "user_tab"
	organiserTable = "org_tab"
)

// tableFor maps a profile kind to its table. The mapping is a closed
// whitelist because table names cannot be bound as query parameters.
func tableFor(kind model.ProfileKind) (string, error) {
	switch kind {
	case model.KindUser:
		return userTable, nil
	case model.KindOrganiser:
		return organiserTable, nil
	default:
		return "", fmt.Errorf("sqlite: unknown profile kind %q", kind)
	}
}
