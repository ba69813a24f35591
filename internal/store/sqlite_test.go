// ABOUTME: Tests for the SQLite credential store
// ABOUTME: Covers the existence probe, user CRUD, bootstrap transaction, and audit log

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestUserTableExists_FreshDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.UserTableExists(ctx, "main")
	if err != nil {
		t.Fatalf("UserTableExists failed: %v", err)
	}
	if exists {
		t.Error("credential table should not exist in a fresh database")
	}
}

func TestCreateUser_BootstrapsTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{Username: "alice", PasswordHash: []byte("hash-a"), IsAdmin: true}
	if err := s.CreateUser(ctx, "", user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	exists, err := s.UserTableExists(ctx, "main")
	if err != nil {
		t.Fatalf("UserTableExists failed: %v", err)
	}
	if !exists {
		t.Error("credential table should exist after first CreateUser")
	}

	got, err := s.GetUser(ctx, "main", "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if string(got.PasswordHash) != "hash-a" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "hash-a")
	}
	if !got.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{Username: "alice", PasswordHash: []byte("h"), IsAdmin: false}
	if err := s.CreateUser(ctx, "", user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := s.CreateUser(ctx, "alice", &User{Username: "alice", PasswordHash: []byte("h2")})
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "", &User{Username: "alice", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err := s.GetUser(ctx, "main", "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUser_CaseSensitiveUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "", &User{Username: "Alice", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := s.GetUser(ctx, "main", "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("usernames must be case-sensitive, got %v", err)
	}
	if _, err := s.GetUser(ctx, "main", "Alice"); err != nil {
		t.Errorf("exact-case lookup failed: %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "", &User{Username: "bob", PasswordHash: []byte("old")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := s.UpdateUser(ctx, "bob", &User{Username: "bob", PasswordHash: []byte("new"), IsAdmin: true})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	got, err := s.GetUser(ctx, "main", "bob")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if string(got.PasswordHash) != "new" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "new")
	}
	if !got.IsAdmin {
		t.Error("IsAdmin not updated")
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "", &User{Username: "bob", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := s.UpdateUser(ctx, "bob", &User{Username: "nobody", PasswordHash: []byte("h")})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "", &User{Username: "bob", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.DeleteUser(ctx, "admin", "bob"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := s.GetUser(ctx, "main", "bob"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}

	if err := s.DeleteUser(ctx, "admin", "bob"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty list on an auth-free database, not an error.
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no users, got %d", len(users))
	}

	for _, name := range []string{"carol", "alice", "bob"} {
		if err := s.CreateUser(ctx, "", &User{Username: name, PasswordHash: []byte("h")}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}

	users, err = s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	// Ordered by username
	if users[0].Username != "alice" || users[1].Username != "bob" || users[2].Username != "carol" {
		t.Errorf("unexpected order: %s, %s, %s", users[0].Username, users[1].Username, users[2].Username)
	}
}

func TestCountAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.CountAdmins(ctx)
	if err != nil {
		t.Fatalf("CountAdmins failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 admins on fresh database, got %d", count)
	}

	if err := s.CreateUser(ctx, "", &User{Username: "root", PasswordHash: []byte("h"), IsAdmin: true}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, "root", &User{Username: "bob", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	count, err = s.CountAdmins(ctx)
	if err != nil {
		t.Fatalf("CountAdmins failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 admin, got %d", count)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Nothing yet, and no error before the tables exist.
	entries, err := s.ListAudit(ctx, 0)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty audit log, got %d entries", len(entries))
	}

	if err := s.CreateUser(ctx, "", &User{Username: "alice", PasswordHash: []byte("h"), IsAdmin: true}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.UpdateUser(ctx, "alice", &User{Username: "alice", PasswordHash: []byte("h2"), IsAdmin: true}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, "alice", &User{Username: "bob", PasswordHash: []byte("h")}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.DeleteUser(ctx, "alice", "bob"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	entries, err = s.ListAudit(ctx, 0)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 audit entries, got %d", len(entries))
	}

	// Bootstrap actor is recorded as "-".
	var sawBootstrap bool
	for _, e := range entries {
		if e.Action == "add_user" && e.Target == "alice" {
			sawBootstrap = true
			if e.Actor != "-" {
				t.Errorf("bootstrap actor = %q, want %q", e.Actor, "-")
			}
		}
		if e.ID == "" {
			t.Error("audit entry missing ID")
		}
		if e.Timestamp.IsZero() {
			t.Error("audit entry missing timestamp")
		}
	}
	if !sawBootstrap {
		t.Error("missing add_user audit entry for alice")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("main"); got != `"main"` {
		t.Errorf("quoteIdent(main) = %s", got)
	}
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("quoteIdent escaping = %s", got)
	}
}
