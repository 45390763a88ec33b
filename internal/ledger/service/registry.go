package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// EffectiveRatingKey returns the key a mode's pool ratings live under: the
// shared pool prefix when one is set, otherwise the mode's own id.
func EffectiveRatingKey(mode storage.GameMode) string {
	if prefix := strings.TrimSpace(mode.RatingPoolPrefix); prefix != "" {
		return prefix
	}
	return mode.ModeID
}

// AddMode registers a game mode. Team size counts all participants and must
// be even and at least two so the teams split cleanly.
func (s *Service) AddMode(ctx context.Context, mode storage.GameMode) error {
	mode.ModeID = strings.TrimSpace(mode.ModeID)
	mode.DisplayName = strings.TrimSpace(mode.DisplayName)
	if mode.ModeID == "" {
		return apperrors.New(apperrors.CodeModeNotFound, "a mode id is required")
	}
	if mode.DisplayName == "" {
		mode.DisplayName = mode.ModeID
	}
	if mode.TeamSize < 2 || mode.TeamSize%2 != 0 {
		return apperrors.WithMetadata(apperrors.CodeModeTeamSizeInvalid,
			"team size must be an even number of at least two players",
			map[string]string{"mode": mode.ModeID, "team_size": fmt.Sprint(mode.TeamSize)})
	}

	err := s.store.CreateMode(ctx, mode)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return apperrors.WithMetadata(apperrors.CodeModeExists,
			"mode already exists", map[string]string{"mode": mode.ModeID})
	}
	if err != nil {
		return fmt.Errorf("add mode: %w", err)
	}
	return nil
}

// RemoveMode deletes a mode, cascading its aliases and per-mode rating
// rows. The reserved default mode cannot be removed.
func (s *Service) RemoveMode(ctx context.Context, modeID string) error {
	if modeID == storage.ReservedModeID {
		return apperrors.New(apperrors.CodeModeReserved, "the default mode cannot be removed")
	}
	err := s.store.RemoveMode(ctx, modeID)
	if errors.Is(err, storage.ErrNotFound) {
		return modeNotFound(modeID)
	}
	if err != nil {
		return fmt.Errorf("remove mode: %w", err)
	}
	return nil
}

// ResolveModeName canonicalizes a mode name through the alias table.
// Unknown names come back unchanged; resolution never fails on input.
func (s *Service) ResolveModeName(ctx context.Context, name string) (string, error) {
	modeID, err := s.store.ResolveAlias(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return name, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve mode name: %w", err)
	}
	return modeID, nil
}

// ResolveMode canonicalizes a name and fetches the mode it denotes.
func (s *Service) ResolveMode(ctx context.Context, name string) (storage.GameMode, error) {
	modeID, err := s.ResolveModeName(ctx, name)
	if err != nil {
		return storage.GameMode{}, err
	}
	mode, err := s.store.GetMode(ctx, modeID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.GameMode{}, modeNotFound(name)
	}
	if err != nil {
		return storage.GameMode{}, fmt.Errorf("resolve mode: %w", err)
	}
	return mode, nil
}

// ListModes returns every registered mode, biggest team sizes first.
func (s *Service) ListModes(ctx context.Context) ([]storage.GameMode, error) {
	modes, err := s.store.ListModes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}
	return modes, nil
}

// AddAlias registers an alternate name for a mode.
func (s *Service) AddAlias(ctx context.Context, alias, modeID string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return apperrors.New(apperrors.CodeAliasNotFound, "an alias is required")
	}
	err := s.store.CreateAlias(ctx, alias, modeID)
	switch {
	case errors.Is(err, storage.ErrAliasShadowsMode):
		return apperrors.WithMetadata(apperrors.CodeAliasShadowsMode,
			"alias collides with a mode id", map[string]string{"alias": alias})
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.WithMetadata(apperrors.CodeAliasExists,
			"alias already exists", map[string]string{"alias": alias})
	case errors.Is(err, storage.ErrNotFound):
		return modeNotFound(modeID)
	case err != nil:
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

// RemoveAlias drops an alternate mode name.
func (s *Service) RemoveAlias(ctx context.Context, alias string) error {
	err := s.store.RemoveAlias(ctx, alias)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeAliasNotFound,
			"alias does not exist", map[string]string{"alias": alias})
	}
	if err != nil {
		return fmt.Errorf("remove alias: %w", err)
	}
	return nil
}

// ListAliases returns the alternate names registered for a mode.
func (s *Service) ListAliases(ctx context.Context, modeID string) ([]string, error) {
	aliases, err := s.store.ListAliases(ctx, modeID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return aliases, nil
}

// EnableRatingPool toggles per-mode pool ratings for a mode.
func (s *Service) EnableRatingPool(ctx context.Context, modeID string, enabled bool) error {
	err := s.store.SetRatingPoolEnabled(ctx, modeID, enabled)
	if errors.Is(err, storage.ErrNotFound) {
		return modeNotFound(modeID)
	}
	if err != nil {
		return fmt.Errorf("enable rating pool: %w", err)
	}
	return nil
}

// SetRatingPoolPrefix points a mode at a shared pool rating key. An empty
// prefix reverts the mode to its own id.
func (s *Service) SetRatingPoolPrefix(ctx context.Context, modeID, prefix string) error {
	err := s.store.SetRatingPoolPrefix(ctx, modeID, strings.TrimSpace(prefix))
	if errors.Is(err, storage.ErrNotFound) {
		return modeNotFound(modeID)
	}
	if err != nil {
		return fmt.Errorf("set rating pool prefix: %w", err)
	}
	return nil
}

// SetModeRating overrides a player's pool rating for a mode. Unknown modes
// are rejected so typos cannot mint stray pool keys.
func (s *Service) SetModeRating(ctx context.Context, tenantID, playerID, modeName string, value float64) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	mode, err := s.ResolveMode(ctx, modeName)
	if err != nil {
		return err
	}
	if err := s.store.UpdateModeRating(ctx, playerID, tenantID, EffectiveRatingKey(mode), value); err != nil {
		return fmt.Errorf("set mode rating: %w", err)
	}
	return nil
}

func modeNotFound(name string) error {
	return apperrors.WithMetadata(apperrors.CodeModeNotFound,
		"mode does not exist", map[string]string{"mode": name})
}
