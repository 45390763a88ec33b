package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// SetTimeout upserts a tenant-scoped player timeout.
func (s *Store) SetTimeout(ctx context.Context, playerID, tenantID string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO player_timeouts (player_id, tenant_id, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(player_id, tenant_id) DO UPDATE SET expires_at = excluded.expires_at`,
		playerID, tenantID, toMillis(until),
	)
	if err != nil {
		return fmt.Errorf("set timeout: %w", err)
	}
	return nil
}

// ClearTimeout removes a player timeout.
func (s *Store) ClearTimeout(ctx context.Context, playerID, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM player_timeouts WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("clear timeout: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear timeout: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ActiveTimeout returns the expiry for a player still timed out at the
// given instant. Expired rows are deleted on the way out so the table never
// accumulates stale state.
func (s *Store) ActiveTimeout(ctx context.Context, playerID, tenantID string, now time.Time) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT expires_at FROM player_timeouts WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active timeout: %w", err)
	}

	expiry := fromMillis(expiresAt)
	if !expiry.After(now.UTC()) {
		if _, err := s.sqlDB.ExecContext(ctx,
			`DELETE FROM player_timeouts WHERE player_id = ? AND tenant_id = ?`,
			playerID, tenantID,
		); err != nil {
			return nil, fmt.Errorf("expire timeout: %w", err)
		}
		return nil, nil
	}
	return &expiry, nil
}
