// Package statsync parses statsync command flags and runs the periodic
// external stats synchronizer.
package statsync

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/fallacylabs/pugledger/internal/ledger/service"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite"
	entrypoint "github.com/fallacylabs/pugledger/internal/platform/cmd"
	"github.com/fallacylabs/pugledger/internal/statsync"
)

// Config holds statsync command configuration.
type Config struct {
	DBPath        string        `env:"PUGLEDGER_DB_PATH" envDefault:"data/ledger.db"`
	BaseURL       string        `env:"PUGLEDGER_STATS_BASE_URL"`
	SearchPath    string        `env:"PUGLEDGER_STATS_SEARCH_PATH" envDefault:"/search"`
	Tenants       []string      `env:"PUGLEDGER_TENANTS" envSeparator:"," envDefault:"default"`
	SyncInterval  time.Duration `env:"PUGLEDGER_STATS_SYNC_INTERVAL" envDefault:"30m"`
	PruneInterval time.Duration `env:"PUGLEDGER_COOLDOWN_PRUNE_INTERVAL" envDefault:"24h"`
	CooldownKeep  int           `env:"PUGLEDGER_COOLDOWN_KEEP" envDefault:"25"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The ledger SQLite database path")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Base URL of the external stats site")
	fs.StringVar(&cfg.SearchPath, "search-path", cfg.SearchPath, "Player search path on the stats site")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "Interval between stats sync passes")
	fs.DurationVar(&cfg.PruneInterval, "prune-interval", cfg.PruneInterval, "Interval between cooldown prune passes")
	fs.IntVar(&cfg.CooldownKeep, "cooldown-keep", cfg.CooldownKeep, "Cooldown events to keep per pool when pruning")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the statsync runtime and blocks until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStatsync, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if cfg.BaseURL == "" {
		return errors.New("stats base URL is required")
	}
	if cfg.SyncInterval <= 0 {
		return errors.New("sync interval must be positive")
	}
	if cfg.PruneInterval <= 0 {
		return errors.New("prune interval must be positive")
	}
	if len(cfg.Tenants) == 0 {
		return errors.New("at least one tenant is required")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close ledger store: %v", err)
		}
	}()

	client := statsync.NewClient(cfg.BaseURL, cfg.SearchPath)
	runner := statsync.NewRunner(store, client, cfg.Tenants)
	svc := service.New(store)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("shutdown scheduler: %v", err)
		}
	}()

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SyncInterval),
		gocron.NewTask(func() {
			report, err := runner.SyncOnce(ctx)
			if err != nil {
				log.Printf("stats sync: %v", err)
				return
			}
			if report.Enabled {
				log.Printf("stats sync: synced=%d failed=%d", report.Synced, report.Failed)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule stats sync: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.PruneInterval),
		gocron.NewTask(func() {
			for _, tenant := range cfg.Tenants {
				if err := svc.PruneCooldowns(ctx, tenant, cfg.CooldownKeep); err != nil {
					log.Printf("prune cooldowns for %s: %v", tenant, err)
				}
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule cooldown prune: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	return nil
}
