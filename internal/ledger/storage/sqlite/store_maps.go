package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// AddMap adds a map to a tenant's pool for one mode prefix.
func (s *Store) AddMap(ctx context.Context, tenantID, modePrefix, mapName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(modePrefix) == "" {
		return fmt.Errorf("mode prefix is required")
	}
	if strings.TrimSpace(mapName) == "" {
		return fmt.Errorf("map name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO maps (tenant_id, mode_prefix, map_name, added_at) VALUES (?, ?, ?, ?)`,
		tenantID, modePrefix, mapName, toMillis(time.Now()),
	)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("add map: %w", err)
	}
	return nil
}

// RemoveMap drops a map from a tenant's pool together with its cooldown
// history.
func (s *Store) RemoveMap(ctx context.Context, tenantID, modePrefix, mapName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM maps WHERE tenant_id = ? AND mode_prefix = ? AND map_name = ?`,
		tenantID, modePrefix, mapName,
	)
	if err != nil {
		return fmt.Errorf("remove map: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove map: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM map_cooldowns WHERE tenant_id = ? AND mode_prefix = ? AND map_name = ?`,
		tenantID, modePrefix, mapName,
	); err != nil {
		return fmt.Errorf("remove map cooldowns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListMaps returns a tenant's pool for one mode prefix in name order.
func (s *Store) ListMaps(ctx context.Context, tenantID, modePrefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT map_name FROM maps WHERE tenant_id = ? AND mode_prefix = ? ORDER BY map_name`,
		tenantID, modePrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	var maps []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return maps, nil
}

// ListMapsGrouped returns every pool for a tenant keyed by mode prefix.
func (s *Store) ListMapsGrouped(ctx context.Context, tenantID string) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT mode_prefix, map_name FROM maps WHERE tenant_id = ? ORDER BY mode_prefix, map_name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list maps grouped: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]string)
	for rows.Next() {
		var prefix, name string
		if err := rows.Scan(&prefix, &name); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		grouped[prefix] = append(grouped[prefix], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list maps grouped: %w", err)
	}
	return grouped, nil
}

// RecordMapUse appends a cooldown log entry for a played map.
func (s *Store) RecordMapUse(ctx context.Context, tenantID, modePrefix, mapName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO map_cooldowns (tenant_id, mode_prefix, map_name, used_at) VALUES (?, ?, ?, ?)`,
		tenantID, modePrefix, mapName, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record map use: %w", err)
	}
	return nil
}

// MapsOnCooldown returns the most recently played distinct maps, newest
// first. The id tiebreak keeps ordering stable when uses share a timestamp.
func (s *Store) MapsOnCooldown(ctx context.Context, tenantID, modePrefix string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if count <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT map_name FROM map_cooldowns
		 WHERE tenant_id = ? AND mode_prefix = ?
		 ORDER BY used_at DESC, id DESC`,
		tenantID, modePrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("maps on cooldown: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var cooling []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		cooling = append(cooling, name)
		if len(cooling) == count {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("maps on cooldown: %w", err)
	}
	return cooling, nil
}

// PruneMapCooldowns trims the cooldown log for one pool down to its newest
// entries.
func (s *Store) PruneMapCooldowns(ctx context.Context, tenantID, modePrefix string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if keep < 0 {
		return fmt.Errorf("keep must not be negative")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM map_cooldowns
		 WHERE tenant_id = ? AND mode_prefix = ? AND id NOT IN (
			SELECT id FROM map_cooldowns
			WHERE tenant_id = ? AND mode_prefix = ?
			ORDER BY used_at DESC, id DESC LIMIT ?
		 )`,
		tenantID, modePrefix, tenantID, modePrefix, keep,
	)
	if err != nil {
		return fmt.Errorf("prune map cooldowns: %w", err)
	}
	return nil
}
