package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"

	"github.com/fallacylabs/pugledger/internal/ledger/rating"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// CreateMatch validates teams against the mode's size, snapshots both
// sides' average ratings, and appends an active match to the ledger.
func (s *Service) CreateMatch(ctx context.Context, tenantID string, redTeam, blueTeam []string, modeName, tiebreakerMap string) (int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	mode, err := s.ResolveMode(ctx, modeName)
	if err != nil {
		return 0, err
	}

	perSide := mode.TeamSize / 2
	if len(redTeam) != perSide || len(blueTeam) != perSide {
		return 0, apperrors.WithMetadata(apperrors.CodeTeamInvalid,
			"team rosters do not fit the mode",
			map[string]string{
				"mode":     mode.ModeID,
				"per_side": fmt.Sprint(perSide),
				"red":      fmt.Sprint(len(redTeam)),
				"blue":     fmt.Sprint(len(blueTeam)),
			})
	}
	seen := make(map[string]bool, mode.TeamSize)
	for _, playerID := range append(append([]string{}, redTeam...), blueTeam...) {
		if seen[playerID] {
			return 0, apperrors.WithMetadata(apperrors.CodeTeamInvalid,
				"a player appears twice", map[string]string{"player": playerID})
		}
		seen[playerID] = true
	}

	avgRed, err := s.averageRating(ctx, tenantID, redTeam)
	if err != nil {
		return 0, err
	}
	avgBlue, err := s.averageRating(ctx, tenantID, blueTeam)
	if err != nil {
		return 0, err
	}

	matchID, err := s.store.RecordMatch(ctx, redTeam, blueTeam, mode.ModeID, avgRed, avgBlue, tiebreakerMap)
	if err != nil {
		return 0, fmt.Errorf("create match: %w", err)
	}
	return matchID, nil
}

// averageRating snapshots the mean global rating of a roster. Unknown and
// unrated players count at the starting rating.
func (s *Service) averageRating(ctx context.Context, tenantID string, team []string) (float64, error) {
	var sum float64
	for _, playerID := range team {
		value := rating.DefaultRating
		player, err := s.store.GetPlayer(ctx, playerID, tenantID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("average rating: %w", err)
		}
		if err == nil && player.Rating != nil {
			value = *player.Rating
		}
		sum += value
	}
	return sum / float64(len(team)), nil
}

// CompleteMatch marks the winning team and folds the outcome into every
// participant's global counters, plus the mode's pool counters when pool
// ratings are enabled for it. The winner is committed first: a crash
// mid-application leaves a completed match whose counters can be replayed
// by hand, never a half-decided one.
func (s *Service) CompleteMatch(ctx context.Context, tenantID string, matchID int64, winningTeam string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if winningTeam != storage.TeamRed && winningTeam != storage.TeamBlue {
		return apperrors.WithMetadata(apperrors.CodeTeamInvalid,
			"winner must be red or blue", map[string]string{"team": winningTeam})
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, storage.ErrNotFound) {
		return matchNotFound(matchID)
	}
	if err != nil {
		return fmt.Errorf("complete match: %w", err)
	}

	if err := s.store.SetWinner(ctx, matchID, winningTeam); err != nil {
		return mapMatchErr(err, matchID)
	}

	mode, err := s.store.GetMode(ctx, match.ModeID)
	poolKey := ""
	if err == nil && mode.RatingPoolEnabled {
		poolKey = EffectiveRatingKey(mode)
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("complete match: %w", err)
	}

	apply := func(team []string, won bool) error {
		for _, playerID := range team {
			if err := s.store.UpdatePlayerStats(ctx, playerID, tenantID, won); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("apply outcome for %s: %w", playerID, err)
			}
			if poolKey == "" {
				continue
			}
			if err := s.store.UpdateModeStats(ctx, playerID, tenantID, poolKey, won); err != nil {
				return fmt.Errorf("apply pool outcome for %s: %w", playerID, err)
			}
		}
		return nil
	}

	if err := apply(match.RedTeam, winningTeam == storage.TeamRed); err != nil {
		return err
	}
	return apply(match.BlueTeam, winningTeam == storage.TeamBlue)
}

// VoidMatch kills an active match without touching any counters.
func (s *Service) VoidMatch(ctx context.Context, matchID int64) error {
	if err := s.store.KillMatch(ctx, matchID); err != nil {
		return mapMatchErr(err, matchID)
	}
	return nil
}

// Match fetches one ledger entry with its rosters.
func (s *Service) Match(ctx context.Context, matchID int64) (storage.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Match{}, matchNotFound(matchID)
	}
	if err != nil {
		return storage.Match{}, fmt.Errorf("get match: %w", err)
	}
	return match, nil
}

// RecentMatches returns the newest ledger entries first.
func (s *Service) RecentMatches(ctx context.Context, limit int) ([]storage.Match, error) {
	matches, err := s.store.RecentMatches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	return matches, nil
}

func mapMatchErr(err error, matchID int64) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return matchNotFound(matchID)
	case errors.Is(err, storage.ErrMatchNotActive):
		return apperrors.WithMetadata(apperrors.CodeMatchNotActive,
			"match already reached a terminal status",
			map[string]string{"match": fmt.Sprint(matchID)})
	default:
		return fmt.Errorf("update match: %w", err)
	}
}

func matchNotFound(matchID int64) error {
	return apperrors.WithMetadata(apperrors.CodeMatchNotFound,
		"match does not exist", map[string]string{"match": fmt.Sprint(matchID)})
}
