package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// DefaultMapCooldown is how many recently played maps PickMap excludes.
const DefaultMapCooldown = 3

// AddMap adds a map to a tenant's rotation pool for one mode prefix.
func (s *Service) AddMap(ctx context.Context, tenantID, modePrefix, mapName string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	err := s.store.AddMap(ctx, tenantID, modePrefix, mapName)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return apperrors.WithMetadata(apperrors.CodeMapExists,
			"map already in the pool",
			map[string]string{"prefix": modePrefix, "map": mapName})
	}
	if err != nil {
		return fmt.Errorf("add map: %w", err)
	}
	return nil
}

// RemoveMap drops a map from a tenant's rotation pool.
func (s *Service) RemoveMap(ctx context.Context, tenantID, modePrefix, mapName string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	err := s.store.RemoveMap(ctx, tenantID, modePrefix, mapName)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeMapNotFound,
			"map is not in the pool",
			map[string]string{"prefix": modePrefix, "map": mapName})
	}
	if err != nil {
		return fmt.Errorf("remove map: %w", err)
	}
	return nil
}

// ListMaps returns a tenant's pool for one mode prefix.
func (s *Service) ListMaps(ctx context.Context, tenantID, modePrefix string) ([]string, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	maps, err := s.store.ListMaps(ctx, tenantID, modePrefix)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return maps, nil
}

// ListMapsGrouped returns every pool for a tenant keyed by mode prefix.
func (s *Service) ListMapsGrouped(ctx context.Context, tenantID string) (map[string][]string, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	grouped, err := s.store.ListMapsGrouped(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list maps grouped: %w", err)
	}
	return grouped, nil
}

// PickMap selects the next map for a pool, uniformly among maps not on
// cooldown. When the cooldown excludes the whole pool, the full pool is
// eligible again rather than failing the pick. The selection is recorded
// as a cooldown event.
func (s *Service) PickMap(ctx context.Context, tenantID, modePrefix string, cooldown int) (string, error) {
	if err := requireTenant(tenantID); err != nil {
		return "", err
	}
	if cooldown < 0 {
		cooldown = DefaultMapCooldown
	}

	pool, err := s.store.ListMaps(ctx, tenantID, modePrefix)
	if err != nil {
		return "", fmt.Errorf("pick map: %w", err)
	}
	if len(pool) == 0 {
		return "", apperrors.WithMetadata(apperrors.CodeMapPoolEmpty,
			"no maps in the pool", map[string]string{"prefix": modePrefix})
	}

	cooling, err := s.store.MapsOnCooldown(ctx, tenantID, modePrefix, cooldown)
	if err != nil {
		return "", fmt.Errorf("pick map: %w", err)
	}
	excluded := make(map[string]bool, len(cooling))
	for _, name := range cooling {
		excluded[name] = true
	}

	eligible := make([]string, 0, len(pool))
	for _, name := range pool {
		if !excluded[name] {
			eligible = append(eligible, name)
		}
	}
	if len(eligible) == 0 {
		eligible = pool
	}

	picked := eligible[s.pick(len(eligible))]
	if err := s.store.RecordMapUse(ctx, tenantID, modePrefix, picked); err != nil {
		return "", fmt.Errorf("record map use: %w", err)
	}
	return picked, nil
}

// PruneCooldowns trims every pool's cooldown log for a tenant down to the
// newest entries.
func (s *Service) PruneCooldowns(ctx context.Context, tenantID string, keep int) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	grouped, err := s.store.ListMapsGrouped(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("prune cooldowns: %w", err)
	}
	for prefix := range grouped {
		if err := s.store.PruneMapCooldowns(ctx, tenantID, prefix, keep); err != nil {
			return fmt.Errorf("prune cooldowns for %s: %w", prefix, err)
		}
	}
	return nil
}
