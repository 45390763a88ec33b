package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// Store is the persistence surface the service composes over. The SQLite
// store satisfies it in full.
type Store interface {
	storage.PlayerStore
	storage.AdminStore
	storage.ModeStore
	storage.RatingStore
	storage.MatchStore
	storage.MapStore
	storage.SettingStore
	storage.TimeoutStore
}

// Service applies ledger policy on top of raw persistence: validation,
// error-code mapping, outcome application, and map picking.
type Service struct {
	store Store

	// pick selects an index in [0, n); replaced in tests for determinism.
	pick func(n int) int
}

// New wires a service over a store.
func New(store Store) *Service {
	return &Service{
		store: store,
		pick:  rand.Intn,
	}
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperrors.New(apperrors.CodeTenantRequired, "a tenant is required")
	}
	return nil
}

// RegisterPlayer registers (or re-registers) a player under a tenant.
func (s *Service) RegisterPlayer(ctx context.Context, tenantID, playerID, username, displayName string) (storage.Player, error) {
	if err := requireTenant(tenantID); err != nil {
		return storage.Player{}, err
	}
	if strings.TrimSpace(playerID) == "" {
		return storage.Player{}, apperrors.New(apperrors.CodePlayerIDInvalid, "a player id is required")
	}
	player, err := s.store.RegisterPlayer(ctx, playerID, tenantID, username, displayName)
	if err != nil {
		return storage.Player{}, fmt.Errorf("register player: %w", err)
	}
	return player, nil
}

// LookupPlayer resolves a player by id first, then by name.
func (s *Service) LookupPlayer(ctx context.Context, tenantID, query string) (storage.Player, error) {
	if err := requireTenant(tenantID); err != nil {
		return storage.Player{}, err
	}

	player, err := s.store.GetPlayer(ctx, query, tenantID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Player{}, fmt.Errorf("lookup player: %w", err)
	}

	playerID, err := s.store.FindPlayerByName(ctx, tenantID, query)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Player{}, apperrors.WithMetadata(apperrors.CodePlayerNotFound,
			"no player matches", map[string]string{"query": query})
	}
	if err != nil {
		return storage.Player{}, fmt.Errorf("lookup player by name: %w", err)
	}

	player, err = s.store.GetPlayer(ctx, playerID, tenantID)
	if err != nil {
		return storage.Player{}, fmt.Errorf("lookup player: %w", err)
	}
	return player, nil
}

// RemovePlayer hard-deletes a player, reporting whether a row existed.
func (s *Service) RemovePlayer(ctx context.Context, tenantID, playerID string) (bool, error) {
	if err := requireTenant(tenantID); err != nil {
		return false, err
	}
	deleted, err := s.store.DeletePlayer(ctx, playerID, tenantID)
	if err != nil {
		return false, fmt.Errorf("remove player: %w", err)
	}
	return deleted, nil
}

// AssignRating sets a player's global rating by administrative decision.
func (s *Service) AssignRating(ctx context.Context, tenantID, playerID string, value float64) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	err := s.store.UpdatePlayerRating(ctx, playerID, tenantID, value)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodePlayerNotFound,
			"no player matches", map[string]string{"player": playerID})
	}
	if err != nil {
		return fmt.Errorf("assign rating: %w", err)
	}
	return nil
}

// ImportRatings bulk-imports administrative rating assignments with
// partial-failure reporting.
func (s *Service) ImportRatings(ctx context.Context, tenantID string, assignments []storage.RatingAssignment) (storage.BulkRatingReport, error) {
	if err := requireTenant(tenantID); err != nil {
		return storage.BulkRatingReport{}, err
	}
	report, err := s.store.BulkAssignRatings(ctx, tenantID, assignments)
	if err != nil {
		return storage.BulkRatingReport{}, fmt.Errorf("import ratings: %w", err)
	}
	return report, nil
}

// StatsSyncEnabled reads the global stats synchronization flag. A missing
// setting counts as disabled.
func (s *Service) StatsSyncEnabled(ctx context.Context) (bool, error) {
	value, err := s.store.GetSetting(ctx, storage.SettingStatsSyncEnabled)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read stats sync flag: %w", err)
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse stats sync flag %q: %w", value, err)
	}
	return enabled, nil
}

// SetStatsSyncEnabled writes the global stats synchronization flag.
func (s *Service) SetStatsSyncEnabled(ctx context.Context, enabled bool) error {
	if err := s.store.SetSetting(ctx, storage.SettingStatsSyncEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("set stats sync flag: %w", err)
	}
	return nil
}

// TimeoutPlayer places a player in timeout until the given instant.
func (s *Service) TimeoutPlayer(ctx context.Context, tenantID, playerID string, until time.Time) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.store.SetTimeout(ctx, playerID, tenantID, until); err != nil {
		return fmt.Errorf("timeout player: %w", err)
	}
	return nil
}

// LiftTimeout removes a player timeout before it expires. Lifting a timeout
// that does not exist is not an error.
func (s *Service) LiftTimeout(ctx context.Context, tenantID, playerID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	err := s.store.ClearTimeout(ctx, playerID, tenantID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lift timeout: %w", err)
	}
	return nil
}

// PlayerTimeout returns the active timeout expiry, or nil when the player
// is free to queue.
func (s *Service) PlayerTimeout(ctx context.Context, tenantID, playerID string, now time.Time) (*time.Time, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	expiry, err := s.store.ActiveTimeout(ctx, playerID, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("player timeout: %w", err)
	}
	return expiry, nil
}
