package statsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// Store is the slice of ledger persistence the runner needs: the sync flag,
// per-tenant player listing, and the single external-stats write path.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	ListPlayers(ctx context.Context, tenantID string) ([]storage.Player, error)
	SetExternalStats(ctx context.Context, playerID, tenantID, externalName string, syncedAt time.Time) error
}

// Fetcher fetches one player's external profile.
type Fetcher interface {
	SearchPlayer(ctx context.Context, playerName string) (Stats, error)
}

// Report summarizes one sync pass.
type Report struct {
	Enabled bool
	Synced  int
	Failed  int
}

// Runner walks the configured tenants and refreshes the sync watermark for
// every registered player with an external name.
type Runner struct {
	store   Store
	fetcher Fetcher
	tenants []string
	tracer  trace.Tracer

	// now is replaced in tests.
	now func() time.Time
}

// NewRunner wires a sync runner over a store and a fetcher.
func NewRunner(store Store, fetcher Fetcher, tenants []string) *Runner {
	return &Runner{
		store:   store,
		fetcher: fetcher,
		tenants: tenants,
		tracer:  otel.Tracer("statsync"),
		now:     time.Now,
	}
}

// SyncOnce runs one sync pass. The pass is a no-op while the global
// stats_sync_enabled setting is off. Fetches happen before any write so no
// storage work ever waits on network I/O, and one player's failure never
// stops the rest.
func (r *Runner) SyncOnce(ctx context.Context) (Report, error) {
	ctx, span := r.tracer.Start(ctx, "statsync.SyncOnce")
	defer span.End()

	enabled, err := r.syncEnabled(ctx)
	if err != nil {
		return Report{}, err
	}
	if !enabled {
		return Report{}, nil
	}

	report := Report{Enabled: true}
	for _, tenantID := range r.tenants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		players, err := r.store.ListPlayers(ctx, tenantID)
		if err != nil {
			return report, fmt.Errorf("list players for %s: %w", tenantID, err)
		}

		for _, player := range players {
			if !player.Registered || player.ExternalName == "" {
				continue
			}
			if _, err := r.fetcher.SearchPlayer(ctx, player.ExternalName); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return report, err
				}
				log.Printf("statsync: fetch %s (%s): %v", player.ExternalName, player.PlayerID, err)
				report.Failed++
				continue
			}

			if err := r.store.SetExternalStats(ctx, player.PlayerID, tenantID, player.ExternalName, r.now().UTC()); err != nil {
				log.Printf("statsync: write %s (%s): %v", player.ExternalName, player.PlayerID, err)
				report.Failed++
				continue
			}
			report.Synced++
		}
	}

	span.SetAttributes(
		attribute.Int("statsync.synced", report.Synced),
		attribute.Int("statsync.failed", report.Failed),
	)
	return report, nil
}

func (r *Runner) syncEnabled(ctx context.Context) (bool, error) {
	value, err := r.store.GetSetting(ctx, storage.SettingStatsSyncEnabled)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sync flag: %w", err)
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse sync flag %q: %w", value, err)
	}
	return enabled, nil
}
