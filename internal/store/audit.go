// ABOUTME: Audit log of credential-table mutations for accountability
// ABOUTME: Entries commit in the same transaction as the write they describe

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// appendAudit records a successful mutation inside the caller's
// transaction so the audit entry and the write commit or roll back
// together. An empty actor (unauthenticated bootstrap caller) is
// recorded as "-".
func appendAudit(ctx context.Context, tx *sql.Tx, actor, action, target string) error {
	if actor == "" {
		actor = "-"
	}

	query := `INSERT INTO auth_audit (audit_id, actor, action, target, ts) VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		uuid.New().String(),
		actor,
		action,
		target,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit entries, newest first.
// If limit is 0 or negative, a default limit of 100 is used.
// Returns an empty list when no audit table exists yet.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type='table' AND name='auth_audit'`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("probing audit table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, actor, action, target, ts
		FROM auth_audit
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &ts); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Timestamp, err = time.Parse(timeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}
