// ABOUTME: Package documentation for the credential store
// ABOUTME: Explains the table-existence switch and the two-query login contract

// Package store provides read and write access to the credential table
// of a governed SQLite database.
//
// # The table-existence switch
//
// The credential table (UserTable) is never created when a database is
// opened. A database without the table requires no authentication; the
// table comes into existence only through the first CreateUser call, at
// which point every future connection must authenticate. CreateUser
// runs table creation and the first insert in one transaction so a
// crash mid-bootstrap cannot leave an empty credential table with no
// reachable admin.
//
// # Login reads
//
// A login check issues exactly two read queries: a schema-catalog probe
// for the credential table (UserTableExists) and, when the table is
// present and a username was supplied, a single-row lookup of the
// stored hash and admin flag (GetUser). Both are scoped to the named
// database only; attached databases are never consulted. Query failures
// propagate as wrapped engine errors and are never folded into
// authentication failures.
//
// # Audit
//
// Every successful mutation appends an entry to the auth_audit table in
// the same transaction as the write.
package store
