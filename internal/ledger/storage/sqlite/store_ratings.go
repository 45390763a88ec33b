package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/rating"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// UpdatePlayerRating writes a new global rating and raises the peak
// watermark when the new value tops it.
func (s *Store) UpdatePlayerRating(ctx context.Context, playerID, tenantID string, newRating float64) error {
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

	var peak sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT peak_rating FROM players WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	).Scan(&peak)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read peak rating: %w", err)
	}

	var currentPeak *float64
	if peak.Valid {
		currentPeak = &peak.Float64
	}
	newPeak := rating.NextPeak(currentPeak, newRating)

	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET rating = ?, peak_rating = ? WHERE player_id = ? AND tenant_id = ?`,
		newRating, newPeak, playerID, tenantID,
	); err != nil {
		return fmt.Errorf("update player rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdatePlayerStats folds one match outcome into the global win, loss and
// streak counters.
func (s *Store) UpdatePlayerStats(ctx context.Context, playerID, tenantID string, won bool) error {
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

	var stats rating.Stats
	err = tx.QueryRowContext(ctx,
		`SELECT wins, losses, total_matches, current_streak, best_win_streak, best_loss_streak
		 FROM players WHERE player_id = ? AND tenant_id = ?`,
		playerID, tenantID,
	).Scan(
		&stats.Wins, &stats.Losses, &stats.TotalMatches,
		&stats.CurrentStreak, &stats.BestWinStreak, &stats.BestLossStreak,
	)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read player stats: %w", err)
	}

	next := rating.ApplyOutcome(stats, won)

	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET wins = ?, losses = ?, total_matches = ?, current_streak = ?,
		 best_win_streak = ?, best_loss_streak = ?
		 WHERE player_id = ? AND tenant_id = ?`,
		next.Wins, next.Losses, next.TotalMatches, next.CurrentStreak,
		next.BestWinStreak, next.BestLossStreak, playerID, tenantID,
	); err != nil {
		return fmt.Errorf("update player stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const modeRatingColumns = `player_id, tenant_id, mode_key, rating, peak_rating,
	wins, losses, current_streak, best_win_streak, best_loss_streak, updated_at`

func scanModeRating(scan playerScanner) (storage.ModeRating, error) {
	var row storage.ModeRating
	var updatedAt int64
	err := scan.Scan(
		&row.PlayerID, &row.TenantID, &row.ModeKey, &row.Rating, &row.PeakRating,
		&row.Wins, &row.Losses, &row.CurrentStreak, &row.BestWinStreak,
		&row.BestLossStreak, &updatedAt,
	)
	if err != nil {
		return storage.ModeRating{}, err
	}
	row.UpdatedAt = fromMillis(updatedAt)
	return row, nil
}

// GetModeRating fetches one pool rating row. A player with no history in the
// pool gets the starting rating and zeroed counters rather than an error.
func (s *Store) GetModeRating(ctx context.Context, playerID, tenantID, modeKey string) (storage.ModeRating, error) {
	if err := ctx.Err(); err != nil {
		return storage.ModeRating{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ModeRating{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+modeRatingColumns+` FROM player_mode_ratings
		 WHERE player_id = ? AND tenant_id = ? AND mode_key = ?`,
		playerID, tenantID, modeKey,
	)
	record, err := scanModeRating(row)
	if err == sql.ErrNoRows {
		return storage.ModeRating{
			PlayerID:   playerID,
			TenantID:   tenantID,
			ModeKey:    modeKey,
			Rating:     rating.DefaultRating,
			PeakRating: rating.DefaultRating,
		}, nil
	}
	if err != nil {
		return storage.ModeRating{}, fmt.Errorf("get mode rating: %w", err)
	}
	return record, nil
}

// ensureModeRatingRow lazily creates the pool row at the starting rating so
// read-modify-write updates always have a row to work on.
func ensureModeRatingRow(ctx context.Context, tx *sql.Tx, playerID, tenantID, modeKey string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO player_mode_ratings (player_id, tenant_id, mode_key, rating, peak_rating, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		playerID, tenantID, modeKey, rating.DefaultRating, rating.DefaultRating, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("ensure mode rating row: %w", err)
	}
	return nil
}

// UpdateModeRating writes a new pool rating and raises its peak watermark.
func (s *Store) UpdateModeRating(ctx context.Context, playerID, tenantID, modeKey string, newRating float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(modeKey) == "" {
		return fmt.Errorf("mode key is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureModeRatingRow(ctx, tx, playerID, tenantID, modeKey); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE player_mode_ratings
		 SET rating = ?, peak_rating = MAX(peak_rating, ?), updated_at = ?
		 WHERE player_id = ? AND tenant_id = ? AND mode_key = ?`,
		newRating, newRating, toMillis(time.Now()), playerID, tenantID, modeKey,
	); err != nil {
		return fmt.Errorf("update mode rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateModeStats folds one match outcome into a pool's counters.
func (s *Store) UpdateModeStats(ctx context.Context, playerID, tenantID, modeKey string, won bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(modeKey) == "" {
		return fmt.Errorf("mode key is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureModeRatingRow(ctx, tx, playerID, tenantID, modeKey); err != nil {
		return err
	}

	var stats rating.Stats
	err = tx.QueryRowContext(ctx,
		`SELECT wins, losses, current_streak, best_win_streak, best_loss_streak
		 FROM player_mode_ratings WHERE player_id = ? AND tenant_id = ? AND mode_key = ?`,
		playerID, tenantID, modeKey,
	).Scan(
		&stats.Wins, &stats.Losses, &stats.CurrentStreak,
		&stats.BestWinStreak, &stats.BestLossStreak,
	)
	if err != nil {
		return fmt.Errorf("read mode stats: %w", err)
	}

	next := rating.ApplyOutcome(stats, won)

	if _, err := tx.ExecContext(ctx,
		`UPDATE player_mode_ratings
		 SET wins = ?, losses = ?, current_streak = ?, best_win_streak = ?, best_loss_streak = ?, updated_at = ?
		 WHERE player_id = ? AND tenant_id = ? AND mode_key = ?`,
		next.Wins, next.Losses, next.CurrentStreak, next.BestWinStreak,
		next.BestLossStreak, toMillis(time.Now()), playerID, tenantID, modeKey,
	); err != nil {
		return fmt.Errorf("update mode stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListModeRatings returns every pool row for a player in key order.
func (s *Store) ListModeRatings(ctx context.Context, playerID, tenantID string) ([]storage.ModeRating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+modeRatingColumns+` FROM player_mode_ratings
		 WHERE player_id = ? AND tenant_id = ? ORDER BY mode_key`,
		playerID, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mode ratings: %w", err)
	}
	defer rows.Close()

	var ratings []storage.ModeRating
	for rows.Next() {
		record, err := scanModeRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mode rating: %w", err)
		}
		ratings = append(ratings, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mode ratings: %w", err)
	}
	return ratings, nil
}

// BulkAssignRatings imports administrative rating assignments. Invalid rows
// are reported and skipped; they never abort the remaining rows. Unknown
// players are created on the fly so an import can seed a fresh tenant.
func (s *Store) BulkAssignRatings(ctx context.Context, tenantID string, assignments []storage.RatingAssignment) (storage.BulkRatingReport, error) {
	if err := ctx.Err(); err != nil {
		return storage.BulkRatingReport{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.BulkRatingReport{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return storage.BulkRatingReport{}, fmt.Errorf("tenant id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.BulkRatingReport{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var report storage.BulkRatingReport
	now := toMillis(time.Now())
	for _, assignment := range assignments {
		playerID := strings.TrimSpace(assignment.PlayerID)
		if _, err := strconv.ParseUint(playerID, 10, 64); err != nil {
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("invalid player id %q: must be numeric", assignment.PlayerID))
			continue
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO players (player_id, tenant_id, rating, peak_rating, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(player_id, tenant_id) DO UPDATE SET
			   rating = excluded.rating,
			   peak_rating = MAX(COALESCE(players.peak_rating, excluded.rating), excluded.rating)`,
			playerID, tenantID, assignment.Rating, assignment.Rating, now,
		)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("assign rating for %s: %v", playerID, err))
			continue
		}
		report.Succeeded++
	}

	if err := tx.Commit(); err != nil {
		return storage.BulkRatingReport{}, fmt.Errorf("commit tx: %w", err)
	}
	return report, nil
}
