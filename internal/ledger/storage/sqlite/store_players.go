package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

const playerColumns = `player_id, tenant_id, username, display_name, wins, losses,
	total_matches, rating, peak_rating, current_streak, best_win_streak,
	best_loss_streak, registered, external_name, external_last_synced, created_at`

type playerScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(scan playerScanner) (storage.Player, error) {
	var player storage.Player
	var username sql.NullString
	var displayName sql.NullString
	var rating sql.NullFloat64
	var peakRating sql.NullFloat64
	var registered int
	var externalName sql.NullString
	var externalSynced sql.NullInt64
	var createdAt int64

	err := scan.Scan(
		&player.PlayerID,
		&player.TenantID,
		&username,
		&displayName,
		&player.Wins,
		&player.Losses,
		&player.TotalMatches,
		&rating,
		&peakRating,
		&player.CurrentStreak,
		&player.BestWinStreak,
		&player.BestLossStreak,
		&registered,
		&externalName,
		&externalSynced,
		&createdAt,
	)
	if err != nil {
		return storage.Player{}, err
	}

	player.Username = username.String
	player.DisplayName = displayName.String
	if rating.Valid {
		value := rating.Float64
		player.Rating = &value
	}
	if peakRating.Valid {
		value := peakRating.Float64
		player.PeakRating = &value
	}
	player.Registered = registered != 0
	player.ExternalName = externalName.String
	if externalSynced.Valid {
		synced := fromMillis(externalSynced.Int64)
		player.ExternalLastSynced = &synced
	}
	player.CreatedAt = fromMillis(createdAt)
	return player, nil
}

// GetPlayer fetches one tenant-scoped player row.
func (s *Store) GetPlayer(ctx context.Context, playerID, tenantID string) (storage.Player, error) {
	if err := ctx.Err(); err != nil {
		return storage.Player{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Player{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return storage.Player{}, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return storage.Player{}, fmt.Errorf("tenant id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	)
	player, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return storage.Player{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Player{}, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

// RegisterPlayer creates a player row with no rating assigned yet, or flips
// the registered flag on an existing row. Registration is idempotent; the
// starting rating stays an administrative decision, not a default.
func (s *Store) RegisterPlayer(ctx context.Context, playerID, tenantID, username, displayName string) (storage.Player, error) {
	if err := ctx.Err(); err != nil {
		return storage.Player{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Player{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return storage.Player{}, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return storage.Player{}, fmt.Errorf("tenant id is required")
	}

	now := time.Now().UTC()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (player_id, tenant_id, username, display_name, registered, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT(player_id, tenant_id) DO UPDATE SET
		   registered = 1,
		   username = excluded.username,
		   display_name = excluded.display_name`,
		playerID, tenantID, username, displayName, toMillis(now),
	)
	if err != nil {
		return storage.Player{}, fmt.Errorf("register player: %w", err)
	}

	return s.GetPlayer(ctx, playerID, tenantID)
}

// PlayerExists reports whether a tenant-scoped player row exists.
func (s *Store) PlayerExists(ctx context.Context, playerID, tenantID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM players WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("player exists: %w", err)
	}
	return true, nil
}

// UpdatePlayerNames refreshes the cached username and display name.
func (s *Store) UpdatePlayerNames(ctx context.Context, playerID, tenantID, username, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET username = ?, display_name = ? WHERE player_id = ? AND tenant_id = ?`,
		username, displayName, playerID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("update player names: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player names: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindPlayerByName resolves a player id from a username or display name,
// case-insensitively. Username matches win over display-name matches.
func (s *Store) FindPlayerByName(ctx context.Context, tenantID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}

	var playerID string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT player_id FROM players
		 WHERE tenant_id = ? AND LOWER(username) = LOWER(?)
		 ORDER BY player_id LIMIT 1`,
		tenantID, name,
	).Scan(&playerID)
	if err == nil {
		return playerID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("find player by username: %w", err)
	}

	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT player_id FROM players
		 WHERE tenant_id = ? AND LOWER(display_name) = LOWER(?)
		 ORDER BY player_id LIMIT 1`,
		tenantID, name,
	).Scan(&playerID)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find player by display name: %w", err)
	}
	return playerID, nil
}

// DeletePlayer removes a player and every tenant-scoped row that hangs off
// it. Reports whether a player row was actually removed.
func (s *Store) DeletePlayer(ctx context.Context, playerID, tenantID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM players WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}

	for _, table := range []string{"player_mode_ratings", "admins", "player_timeouts"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE player_id = ? AND tenant_id = ?`, table),
			playerID, tenantID,
		); err != nil {
			return false, fmt.Errorf("delete player %s rows: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return affected > 0, nil
}

// ListPlayers returns every player row for a tenant, rated players first in
// descending rating order, unrated players after them by id.
func (s *Store) ListPlayers(ctx context.Context, tenantID string) ([]storage.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE tenant_id = ?
		 ORDER BY rating IS NULL, rating DESC, player_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []storage.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// SetPlayerTotalMatches overrides the recorded match total, clamping the
// registered flag on whenever the total is positive. Reports whether a row
// was updated.
func (s *Store) SetPlayerTotalMatches(ctx context.Context, playerID, tenantID string, total int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if total < 0 {
		return false, fmt.Errorf("total matches must not be negative")
	}

	registered := 0
	if total > 0 {
		registered = 1
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET total_matches = ?, registered = MAX(registered, ?)
		 WHERE player_id = ? AND tenant_id = ?`,
		total, registered, playerID, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("set total matches: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set total matches: %w", err)
	}
	return affected > 0, nil
}

// SetExternalStats records the external account name and sync watermark.
// This is the single write path the stats synchronizer uses.
func (s *Store) SetExternalStats(ctx context.Context, playerID, tenantID, externalName string, syncedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(externalName) == "" {
		return fmt.Errorf("external name is required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET external_name = ?, external_last_synced = ?
		 WHERE player_id = ? AND tenant_id = ?`,
		externalName, toMillis(syncedAt), playerID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("set external stats: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set external stats: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
