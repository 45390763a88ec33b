package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

const matchColumns = `match_id, mode_id, winner, avg_rating_red, avg_rating_blue,
	status, tiebreaker_map, created_at`

func scanMatch(scan playerScanner) (storage.Match, error) {
	var match storage.Match
	var winner sql.NullString
	var avgRed sql.NullFloat64
	var avgBlue sql.NullFloat64
	var tiebreaker sql.NullString
	var createdAt int64

	err := scan.Scan(
		&match.MatchID, &match.ModeID, &winner, &avgRed, &avgBlue,
		&match.Status, &tiebreaker, &createdAt,
	)
	if err != nil {
		return storage.Match{}, err
	}

	match.Winner = winner.String
	match.AvgRatingRed = avgRed.Float64
	match.AvgRatingBlue = avgBlue.Float64
	match.TiebreakerMap = tiebreaker.String
	match.CreatedAt = fromMillis(createdAt)
	return match, nil
}

// RecordMatch appends a new active match and its team memberships, returning
// the ledger-assigned match id.
func (s *Store) RecordMatch(ctx context.Context, redTeam, blueTeam []string, modeID string, avgRed, avgBlue float64, tiebreakerMap string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(modeID) == "" {
		return 0, fmt.Errorf("mode id is required")
	}
	if len(redTeam) == 0 || len(blueTeam) == 0 {
		return 0, fmt.Errorf("both teams are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO matches (mode_id, avg_rating_red, avg_rating_blue, status, tiebreaker_map, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		modeID, avgRed, avgBlue, storage.MatchStatusActive, tiebreakerMap, toMillis(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("record match: %w", err)
	}
	matchID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record match id: %w", err)
	}

	for _, playerID := range redTeam {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_teams (match_id, player_id, team) VALUES (?, ?, ?)`,
			matchID, playerID, storage.TeamRed,
		); err != nil {
			return 0, fmt.Errorf("record red team: %w", err)
		}
	}
	for _, playerID := range blueTeam {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_teams (match_id, player_id, team) VALUES (?, ?, ?)`,
			matchID, playerID, storage.TeamBlue,
		); err != nil {
			return 0, fmt.Errorf("record blue team: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return matchID, nil
}

// setTerminalStatus flips an active match into a terminal status. The guard
// on the current status makes terminal transitions one-shot: a second call
// reports ErrMatchNotActive instead of rewriting history.
func (s *Store) setTerminalStatus(ctx context.Context, matchID int64, status, winner string) error {
	var result sql.Result
	var err error
	if winner == "" {
		result, err = s.sqlDB.ExecContext(ctx,
			`UPDATE matches SET status = ? WHERE match_id = ? AND status = ?`,
			status, matchID, storage.MatchStatusActive,
		)
	} else {
		result, err = s.sqlDB.ExecContext(ctx,
			`UPDATE matches SET status = ?, winner = ? WHERE match_id = ? AND status = ?`,
			status, winner, matchID, storage.MatchStatusActive,
		)
	}
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT status FROM matches WHERE match_id = ?`, matchID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("probe match status: %w", err)
	}
	return storage.ErrMatchNotActive
}

// SetWinner completes an active match with a winning team.
func (s *Store) SetWinner(ctx context.Context, matchID int64, team string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if team != storage.TeamRed && team != storage.TeamBlue {
		return fmt.Errorf("team must be %q or %q", storage.TeamRed, storage.TeamBlue)
	}
	return s.setTerminalStatus(ctx, matchID, storage.MatchStatusCompleted, team)
}

// KillMatch voids an active match. Killed matches keep their ledger row but
// never produce rating or stat changes.
func (s *Store) KillMatch(ctx context.Context, matchID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.setTerminalStatus(ctx, matchID, storage.MatchStatusKilled, "")
}

// GetMatch fetches one match with its team memberships in recorded order.
func (s *Store) GetMatch(ctx context.Context, matchID int64) (storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return storage.Match{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Match{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID,
	)
	match, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return storage.Match{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Match{}, fmt.Errorf("get match: %w", err)
	}

	if err := s.loadTeams(ctx, &match); err != nil {
		return storage.Match{}, err
	}
	return match, nil
}

func (s *Store) loadTeams(ctx context.Context, match *storage.Match) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, team FROM match_teams WHERE match_id = ? ORDER BY id`,
		match.MatchID,
	)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, team string
		if err := rows.Scan(&playerID, &team); err != nil {
			return fmt.Errorf("scan team member: %w", err)
		}
		switch team {
		case storage.TeamRed:
			match.RedTeam = append(match.RedTeam, playerID)
		case storage.TeamBlue:
			match.BlueTeam = append(match.BlueTeam, playerID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	return nil
}

// RecentMatches returns the newest matches first. A non-positive limit gets
// a small default page.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY match_id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var matches []storage.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}

	for i := range matches {
		if err := s.loadTeams(ctx, &matches[i]); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// LastMatchID returns the newest ledger id, zero when the ledger is empty.
func (s *Store) LastMatchID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var last sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT MAX(match_id) FROM matches`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last match id: %w", err)
	}
	return last.Int64, nil
}
