// ABOUTME: Package documentation for the authentication state machine
// ABOUTME: Describes tiers, the login protocol, and the guard preconditions

// Package userauth implements optional login-gated access control for
// an embedded SQLite database.
//
// A database with no credential table requires no authentication:
// every connection is implicitly admin. Creating the first account
// (Session.AddUser) brings the credential table into existence and
// flips the database into authentication-required mode; from then on a
// connection must call Session.Authenticate and reach at least TierUser
// before any gated operation succeeds.
//
// # Tiers
//
// Each connection carries exactly one tier, recomputed in full by every
// Authenticate call and never adjusted incrementally:
//
//	TierUnknown < TierFail < TierUser < TierAdmin
//
// # Guards
//
//   - AddUser: admin only. The bootstrap call on a table-free database
//     must create an admin account and logs the connection in as it.
//   - ChangeUser: self, or admin for any account. Demoting the last
//     admin is refused under Options.ProtectLastAdmin.
//   - DeleteUser: admin only, and never the connection's own account.
//
// Guard failures surface as ErrUnauthorized before any write is
// attempted. Engine failures are wrapped and kept distinct from both
// ErrUnauthorized and ErrInvalidCredentials: "could not check" is never
// reported as "checked and rejected".
//
// A Session is exclusively owned by one connection and is not safe for
// concurrent use.
package userauth
