package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// AddAdmin grants a player admin standing in one tenant. Granting twice is
// not an error.
func (s *Store) AddAdmin(ctx context.Context, playerID, tenantID string) error {
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
		`INSERT OR IGNORE INTO admins (player_id, tenant_id) VALUES (?, ?)`,
		playerID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

// RemoveAdmin revokes admin standing.
func (s *Store) RemoveAdmin(ctx context.Context, playerID, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM admins WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// IsAdmin reports whether a player holds admin standing in a tenant.
func (s *Store) IsAdmin(ctx context.Context, playerID, tenantID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM admins WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is admin: %w", err)
	}
	return true, nil
}

// ListAdmins returns the admin player ids for a tenant in id order.
func (s *Store) ListAdmins(ctx context.Context, tenantID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id FROM admins WHERE tenant_id = ? ORDER BY player_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []string
	for rows.Next() {
		var playerID string
		if err := rows.Scan(&playerID); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, playerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}
