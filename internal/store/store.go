// ABOUTME: Credential record types, sentinel errors, and the accessor interface
// ABOUTME: Defines the contract the login verifier and authorization guard rely on

package store

import (
	"context"
	"errors"
	"time"
)

// UserTable is the reserved credential table name. Its mere existence in
// a database turns authentication on for that database.
const UserTable = "auth_user"

// ErrUserNotFound is returned when a username has no credential record.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when creating a user whose username is taken.
var ErrUserExists = errors.New("username already exists")

// User is one row of the credential table.
type User struct {
	Username     string
	PasswordHash []byte // one-way hash, never the raw credential
	IsAdmin      bool
}

// AuditEntry records one successful credential-table mutation.
type AuditEntry struct {
	ID        string // UUID v4
	Actor     string // username of the connection that performed the action
	Action    string // "add_user", "change_user", "delete_user"
	Target    string // username the action applied to
	Timestamp time.Time
}

// CredentialStore is the read/write surface over the credential table.
// Reads are the two-query login contract; writes are the delegated
// mutations the authorization guard allows through.
type CredentialStore interface {
	// UserTableExists probes the schema catalog of the named database
	// (never attached databases) for the reserved credential table.
	UserTableExists(ctx context.Context, dbName string) (bool, error)

	// GetUser returns the credential record for username in the named
	// database, or ErrUserNotFound.
	GetUser(ctx context.Context, dbName, username string) (*User, error)

	// CreateUser inserts a credential record, creating the credential
	// table first if needed. Table creation and the insert happen in one
	// transaction so a crash cannot leave an empty credential table.
	CreateUser(ctx context.Context, actor string, user *User) error

	// UpdateUser replaces the hash and admin flag for username.
	UpdateUser(ctx context.Context, actor string, user *User) error

	// DeleteUser removes the credential record for username.
	DeleteUser(ctx context.Context, actor, username string) error

	ListUsers(ctx context.Context) ([]*User, error)
	CountAdmins(ctx context.Context) (int, error)
	ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error)

	// Close releases the underlying database handle.
	Close() error
}
