package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

const modeColumns = `mode_id, display_name, team_size, description,
	rating_pool_enabled, rating_pool_prefix`

func scanMode(scan playerScanner) (storage.GameMode, error) {
	var mode storage.GameMode
	var description sql.NullString
	var poolEnabled int
	var poolPrefix sql.NullString

	err := scan.Scan(
		&mode.ModeID,
		&mode.DisplayName,
		&mode.TeamSize,
		&description,
		&poolEnabled,
		&poolPrefix,
	)
	if err != nil {
		return storage.GameMode{}, err
	}

	mode.Description = description.String
	mode.RatingPoolEnabled = poolEnabled != 0
	mode.RatingPoolPrefix = poolPrefix.String
	return mode, nil
}

// CreateMode registers a global game mode.
func (s *Store) CreateMode(ctx context.Context, mode storage.GameMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(mode.ModeID) == "" {
		return fmt.Errorf("mode id is required")
	}
	if strings.TrimSpace(mode.DisplayName) == "" {
		return fmt.Errorf("display name is required")
	}

	poolEnabled := 0
	if mode.RatingPoolEnabled {
		poolEnabled = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO game_modes (mode_id, display_name, team_size, description, rating_pool_enabled, rating_pool_prefix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mode.ModeID, mode.DisplayName, mode.TeamSize, mode.Description, poolEnabled, mode.RatingPoolPrefix,
	)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create mode: %w", err)
	}
	return nil
}

// RemoveMode deletes a mode together with its aliases and the rating rows
// keyed directly by its id. Rating rows keyed by a shared pool prefix stay:
// other modes may still feed them.
func (s *Store) RemoveMode(ctx context.Context, modeID string) error {
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

	result, err := tx.ExecContext(ctx, `DELETE FROM game_modes WHERE mode_id = ?`, modeID)
	if err != nil {
		return fmt.Errorf("remove mode: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove mode: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mode_aliases WHERE mode_id = ?`, modeID); err != nil {
		return fmt.Errorf("remove mode aliases: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM player_mode_ratings WHERE mode_key = ?`, modeID); err != nil {
		return fmt.Errorf("remove mode ratings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetMode fetches one mode by its id. Aliases do not resolve here; use
// ResolveAlias first.
func (s *Store) GetMode(ctx context.Context, modeID string) (storage.GameMode, error) {
	if err := ctx.Err(); err != nil {
		return storage.GameMode{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GameMode{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+modeColumns+` FROM game_modes WHERE mode_id = ?`, modeID,
	)
	mode, err := scanMode(row)
	if err == sql.ErrNoRows {
		return storage.GameMode{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.GameMode{}, fmt.Errorf("get mode: %w", err)
	}
	return mode, nil
}

// ListModes returns every mode, biggest team sizes first.
func (s *Store) ListModes(ctx context.Context) ([]storage.GameMode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+modeColumns+` FROM game_modes ORDER BY team_size DESC, mode_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}
	defer rows.Close()

	var modes []storage.GameMode
	for rows.Next() {
		mode, err := scanMode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mode: %w", err)
		}
		modes = append(modes, mode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}
	return modes, nil
}

// SetRatingPoolEnabled toggles per-mode pool ratings.
func (s *Store) SetRatingPoolEnabled(ctx context.Context, modeID string, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	value := 0
	if enabled {
		value = 1
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE game_modes SET rating_pool_enabled = ? WHERE mode_id = ?`,
		value, modeID,
	)
	if err != nil {
		return fmt.Errorf("set rating pool enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rating pool enabled: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetRatingPoolPrefix assigns the shared rating key prefix for a mode. An
// empty prefix reverts the mode to its own id as the rating key.
func (s *Store) SetRatingPoolPrefix(ctx context.Context, modeID, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE game_modes SET rating_pool_prefix = ? WHERE mode_id = ?`,
		prefix, modeID,
	)
	if err != nil {
		return fmt.Errorf("set rating pool prefix: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rating pool prefix: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListRatingPoolModes returns the ids of modes with pool ratings enabled.
func (s *Store) ListRatingPoolModes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT mode_id FROM game_modes WHERE rating_pool_enabled = 1 ORDER BY mode_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rating pool modes: %w", err)
	}
	defer rows.Close()

	var modeIDs []string
	for rows.Next() {
		var modeID string
		if err := rows.Scan(&modeID); err != nil {
			return nil, fmt.Errorf("scan rating pool mode: %w", err)
		}
		modeIDs = append(modeIDs, modeID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rating pool modes: %w", err)
	}
	return modeIDs, nil
}

// CreateAlias registers an alternate name for a mode. An alias may not reuse
// a real mode id, and the target mode must exist.
func (s *Store) CreateAlias(ctx context.Context, alias, modeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("alias is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM game_modes WHERE mode_id = ?`, alias).Scan(&one)
	if err == nil {
		return storage.ErrAliasShadowsMode
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("probe alias collision: %w", err)
	}

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM game_modes WHERE mode_id = ?`, modeID).Scan(&one)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("probe alias target: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO mode_aliases (alias, mode_id) VALUES (?, ?)`, alias, modeID,
	)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create alias: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RemoveAlias drops an alternate mode name.
func (s *Store) RemoveAlias(ctx context.Context, alias string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM mode_aliases WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("remove alias: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove alias: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAliases returns the alternate names registered for one mode.
func (s *Store) ListAliases(ctx context.Context, modeID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT alias FROM mode_aliases WHERE mode_id = ? ORDER BY alias`, modeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return aliases, nil
}

// ResolveAlias maps a name onto a mode id. Real mode ids resolve to
// themselves before aliases are consulted.
func (s *Store) ResolveAlias(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}

	var modeID string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT mode_id FROM game_modes WHERE mode_id = ?`, name,
	).Scan(&modeID)
	if err == nil {
		return modeID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve mode id: %w", err)
	}

	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT mode_id FROM mode_aliases WHERE alias = ?`, name,
	).Scan(&modeID)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve alias: %w", err)
	}
	return modeID, nil
}
