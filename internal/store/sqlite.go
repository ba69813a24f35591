// ABOUTME: SQLite implementation of the credential store using modernc.org/sqlite
// ABOUTME: Issues the two-query login reads and transactional credential mutations

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements CredentialStore over a single SQLite database
// file. The credential table is never created at open time: on-disk
// presence of the table is what switches authentication on, so the
// table only comes into existence through the first CreateUser call.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path.
// Parent directories are created if needed.
func Open(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	logger.Debug("opened database", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// quoteIdent quotes a schema or table identifier for interpolation into
// SQL text. database/sql cannot bind identifiers, so the database name
// in schema-qualified queries goes through this instead of a parameter.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// UserTableExists probes the schema catalog of the named database for
// the reserved credential table. Attached databases have their own
// catalogs and are deliberately not consulted.
func (s *SQLiteStore) UserTableExists(ctx context.Context, dbName string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT 1 FROM %s.sqlite_master WHERE type='table' AND name=?`,
		quoteIdent(dbName),
	)

	var one int
	err := s.db.QueryRowContext(ctx, query, UserTable).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing credential table: %w", err)
	}
	return true, nil
}

// GetUser returns the credential record for username in the named
// database, or ErrUserNotFound if no such row exists.
func (s *SQLiteStore) GetUser(ctx context.Context, dbName, username string) (*User, error) {
	query := fmt.Sprintf(
		`SELECT username, password_hash, is_admin FROM %s.%s WHERE username = ?`,
		quoteIdent(dbName), UserTable,
	)

	var user User
	var isAdmin int
	err := s.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.PasswordHash, &isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.IsAdmin = isAdmin != 0
	return &user, nil
}

// createUserTableSQL creates the credential and audit tables. Run inside
// the same transaction as the first insert so a crash mid-bootstrap
// cannot leave an empty credential table behind.
const createUserTableSQL = `
	CREATE TABLE IF NOT EXISTS ` + UserTable + ` (
		username      TEXT PRIMARY KEY,
		password_hash BLOB NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS auth_audit (
		audit_id TEXT PRIMARY KEY,
		actor    TEXT NOT NULL,
		action   TEXT NOT NULL,
		target   TEXT NOT NULL,
		ts       TEXT NOT NULL
	);
`

// CreateUser inserts a credential record, creating the credential table
// first when this is the bootstrap call on a previously auth-free
// database. Table creation, insert, and the audit entry commit together.
func (s *SQLiteStore) CreateUser(ctx context.Context, actor string, user *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createUserTableSQL); err != nil {
		return fmt.Errorf("creating credential table: %w", err)
	}

	query := `INSERT INTO ` + UserTable + ` (username, password_hash, is_admin) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, user.Username, user.PasswordHash, boolToInt(user.IsAdmin)); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	if err := appendAudit(ctx, tx, actor, "add_user", user.Username); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user insert: %w", err)
	}

	s.logger.Info("created user", "username", user.Username, "is_admin", user.IsAdmin)
	return nil
}

// UpdateUser replaces the hash and admin flag for an existing user.
// Returns ErrUserNotFound if the username has no record.
func (s *SQLiteStore) UpdateUser(ctx context.Context, actor string, user *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE ` + UserTable + ` SET password_hash = ?, is_admin = ? WHERE username = ?`
	result, err := tx.ExecContext(ctx, query, user.PasswordHash, boolToInt(user.IsAdmin), user.Username)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	if err := appendAudit(ctx, tx, actor, "change_user", user.Username); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user update: %w", err)
	}

	s.logger.Info("updated user", "username", user.Username, "is_admin", user.IsAdmin)
	return nil
}

// DeleteUser removes the credential record for username.
// Returns ErrUserNotFound if the username has no record.
func (s *SQLiteStore) DeleteUser(ctx context.Context, actor, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM `+UserTable+` WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	if err := appendAudit(ctx, tx, actor, "delete_user", username); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user delete: %w", err)
	}

	s.logger.Info("deleted user", "username", username)
	return nil
}

// ListUsers returns all credential records ordered by username.
// Returns an empty list when the credential table does not exist.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	exists, err := s.UserTableExists(ctx, "main")
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT username, password_hash, is_admin FROM `+UserTable+` ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var isAdmin int
		if err := rows.Scan(&user.Username, &user.PasswordHash, &isAdmin); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		user.IsAdmin = isAdmin != 0
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// CountAdmins returns the number of admin-flagged credential records.
// Returns zero when the credential table does not exist.
func (s *SQLiteStore) CountAdmins(ctx context.Context) (int, error) {
	exists, err := s.UserTableExists(ctx, "main")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+UserTable+` WHERE is_admin != 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}

var _ CredentialStore = (*SQLiteStore)(nil)

// timeFormat is the timestamp layout used in the audit log.
const timeFormat = time.RFC3339
