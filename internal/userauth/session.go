// ABOUTME: Login verifier and authorization guard over one database connection
// ABOUTME: Computes the privilege tier and gates add/change/delete user operations

package userauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/authgate/internal/credhash"
	"github.com/2389/authgate/internal/store"
)

// MainDB is the schema name of the primary database. Authentication
// applies to the primary database only, never to attached databases.
const MainDB = "main"

// ErrInvalidCredentials is returned by Authenticate when the credential
// table exists and the supplied username/credential pair was rejected.
// Recoverable by re-authenticating with different credentials.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUnauthorized is returned when a guard precondition fails: the
// connection's tier or identity is insufficient for the operation.
var ErrUnauthorized = errors.New("unauthorized")

// ErrLastAdmin is returned when an admin-flag change would leave the
// credential table without any admin account.
var ErrLastAdmin = errors.New("cannot demote the last remaining admin")

// ErrEmptyUsername is returned when an operation targets an empty username.
var ErrEmptyUsername = errors.New("username must not be empty")

// Options configures guard behavior for a Session.
type Options struct {
	// ProtectLastAdmin refuses ChangeUser calls that would strip the
	// admin flag from the last remaining admin account. On by default;
	// disable it to allow locking every account out of admin rights.
	ProtectLastAdmin bool
}

// DefaultOptions returns the recommended guard configuration.
func DefaultOptions() Options {
	return Options{ProtectLastAdmin: true}
}

// Session is the authentication state machine for one database
// connection. It owns its state exclusively and is not safe for
// concurrent use; open one Session per connection.
type Session struct {
	store  store.CredentialStore
	state  authState
	opts   Options
	logger *slog.Logger
}

// NewSession creates a Session over the given credential store.
// The initial tier is TierUnknown until a login check runs.
func NewSession(cs store.CredentialStore, opts Options) *Session {
	return &Session{
		store:  cs,
		opts:   opts,
		logger: slog.Default().With("component", "userauth"),
	}
}

// Tier returns the connection's current privilege tier.
func (s *Session) Tier() Tier {
	return s.state.tier
}

// Username returns the candidate username of the last login attempt,
// or the empty string if none was made.
func (s *Session) Username() string {
	return s.state.username
}

// AuthEnabled reports whether the primary database requires
// authentication, i.e. whether the credential table exists.
func (s *Session) AuthEnabled(ctx context.Context) (bool, error) {
	return s.store.UserTableExists(ctx, MainDB)
}

// CheckLogin determines the tier the connection's current candidate
// credentials earn against the named database. The connection runs
// temporarily elevated so the check itself is never blocked by a
// not-yet-established tier; the prior tier is restored on every exit
// path. The caller's tier is not committed here.
//
// An engine failure yields (TierUnknown, err); TierUnknown is never a
// verdict on the credentials themselves.
func (s *Session) CheckLogin(ctx context.Context, dbName string) (Tier, error) {
	restore := s.state.elevate()
	defer restore()
	return s.checkLogin(ctx, dbName)
}

// effectiveTier returns the connection's tier for guard decisions,
// running the login check lazily when no check has produced a result
// yet. A connection that never attempted a login thereby lands on
// TierAdmin against an auth-free database (the bootstrap path) and on
// TierFail against an auth-required one.
func (s *Session) effectiveTier(ctx context.Context) (Tier, error) {
	if s.state.tier == TierUnknown {
		tier, err := s.CheckLogin(ctx, MainDB)
		if err != nil {
			return TierUnknown, fmt.Errorf("checking login: %w", err)
		}
		s.state.tier = tier
	}
	return s.state.tier, nil
}

func (s *Session) checkLogin(ctx context.Context, dbName string) (Tier, error) {
	exists, err := s.store.UserTableExists(ctx, dbName)
	if err != nil {
		return TierUnknown, err
	}
	if !exists {
		// No credential table. Everybody is admin.
		return TierAdmin, nil
	}

	if s.state.username == "" {
		return TierFail, nil
	}

	user, err := s.store.GetUser(ctx, dbName, s.state.username)
	if errors.Is(err, store.ErrUserNotFound) {
		// Unknown username costs the same as a wrong credential.
		credhash.Verify(nil, s.state.credential)
		return TierFail, nil
	}
	if err != nil {
		return TierUnknown, err
	}

	if !credhash.Verify(user.PasswordHash, s.state.credential) {
		return TierFail, nil
	}
	if user.IsAdmin {
		return TierAdmin, nil
	}
	return TierUser, nil
}

// Authenticate replaces the connection's candidate credentials and
// recomputes its tier against the primary database. Any prior
// authenticated state is fully discarded before the new attempt is
// evaluated; there is no incremental re-auth.
//
// Returns nil on a tier of User or Admin, ErrInvalidCredentials when
// the check ran and rejected the pair, or a wrapped engine error when
// the check could not run at all.
func (s *Session) Authenticate(ctx context.Context, username string, credential []byte) error {
	s.state.setCandidate(username, credential)

	tier, err := s.CheckLogin(ctx, MainDB)
	s.state.tier = tier
	if err != nil {
		return fmt.Errorf("checking login: %w", err)
	}
	if tier < TierUser {
		s.logger.Info("authentication rejected", "username", username)
		return ErrInvalidCredentials
	}

	s.logger.Info("authenticated", "username", username, "tier", tier.String())
	return nil
}

// AddUser creates a new account. Only an admin may call it; on a
// database with no credential table every connection is admin, so the
// first AddUser is what turns authentication on. That bootstrap call
// must create an admin account (the table may never exist without one)
// and, when the connection has no login of its own, logs the
// connection in as the newly created user.
func (s *Session) AddUser(ctx context.Context, username string, isAdmin bool, credential []byte) error {
	if username == "" {
		return ErrEmptyUsername
	}
	tier, err := s.effectiveTier(ctx)
	if err != nil {
		return err
	}
	if tier < TierAdmin {
		return ErrUnauthorized
	}

	exists, err := s.store.UserTableExists(ctx, MainDB)
	if err != nil {
		return fmt.Errorf("probing credential table: %w", err)
	}
	if !exists && !isAdmin {
		// The first account bootstraps the table and must be an admin.
		return ErrUnauthorized
	}

	hash, err := credhash.Hash(credential)
	if err != nil {
		return err
	}

	user := &store.User{Username: username, PasswordHash: hash, IsAdmin: isAdmin}
	if err := s.store.CreateUser(ctx, s.state.username, user); err != nil {
		return fmt.Errorf("adding user: %w", err)
	}

	if s.state.username == "" {
		// Bootstrap path: the connection had no login of its own, so it
		// becomes the user it just created.
		s.state.setCandidate(username, credential)
		tier, err := s.CheckLogin(ctx, MainDB)
		s.state.tier = tier
		if err != nil {
			return fmt.Errorf("checking login after bootstrap: %w", err)
		}
	}
	return nil
}

// ChangeUser updates an account's credential and admin flag. Any user
// may change their own credential; only an admin may touch another
// account or change an admin flag, their own included. Demoting the
// last remaining admin is refused when
// ProtectLastAdmin is set, so the anti-lockout guarantee survives the
// indirect path too.
func (s *Session) ChangeUser(ctx context.Context, username string, isAdmin bool, credential []byte) error {
	if username == "" {
		return ErrEmptyUsername
	}
	tier, err := s.effectiveTier(ctx)
	if err != nil {
		return err
	}
	if tier < TierUser {
		return ErrUnauthorized
	}
	if username != s.state.username && tier < TierAdmin {
		return ErrUnauthorized
	}

	if tier < TierAdmin {
		target, err := s.store.GetUser(ctx, MainDB, username)
		if err != nil && !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("checking target user: %w", err)
		}
		if err == nil && target.IsAdmin != isAdmin {
			// Changing an admin flag takes admin rights, one's own included.
			return ErrUnauthorized
		}
	}

	if s.opts.ProtectLastAdmin && !isAdmin {
		target, err := s.store.GetUser(ctx, MainDB, username)
		if err != nil && !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("checking target user: %w", err)
		}
		if err == nil && target.IsAdmin {
			admins, err := s.store.CountAdmins(ctx)
			if err != nil {
				return fmt.Errorf("counting admins: %w", err)
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
	}

	hash, err := credhash.Hash(credential)
	if err != nil {
		return err
	}

	user := &store.User{Username: username, PasswordHash: hash, IsAdmin: isAdmin}
	if err := s.store.UpdateUser(ctx, s.state.username, user); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("changing user: %w", err)
	}
	return nil
}

// DeleteUser removes an account. Admin only, and never the connection's
// own account: the self-delete prohibition guarantees that a credential
// table, once created, always retains at least one reachable admin.
func (s *Session) DeleteUser(ctx context.Context, username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	tier, err := s.effectiveTier(ctx)
	if err != nil {
		return err
	}
	if tier < TierAdmin {
		return ErrUnauthorized
	}
	if username == s.state.username {
		return ErrUnauthorized
	}

	if err := s.store.DeleteUser(ctx, s.state.username, username); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
