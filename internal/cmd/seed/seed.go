// Package seed populates a development ledger with sample modes, maps,
// and players so local tooling has data to work against.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/fallacylabs/pugledger/internal/ledger/service"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite"
	entrypoint "github.com/fallacylabs/pugledger/internal/platform/cmd"
	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"PUGLEDGER_DB_PATH" envDefault:"data/ledger.db"`
	Tenant string `env:"PUGLEDGER_SEED_TENANT" envDefault:"default"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The ledger SQLite database path")
	fs.StringVar(&cfg.Tenant, "tenant", cfg.Tenant, "Tenant to seed")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the ledger. Re-running against an already seeded database is
// safe; rows that already exist are left alone.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	svc := service.New(store)
	if err := seedModes(ctx, svc); err != nil {
		return err
	}
	if err := seedMaps(ctx, svc, cfg.Tenant); err != nil {
		return err
	}
	if err := seedPlayers(ctx, store, svc, cfg.Tenant); err != nil {
		return err
	}

	fmt.Fprintf(out, "Seeded tenant %s in %s\n", cfg.Tenant, cfg.DBPath)
	return nil
}

func seedModes(ctx context.Context, svc *service.Service) error {
	modes := []storage.GameMode{
		{ModeID: "duel", DisplayName: "Duel", TeamSize: 2, Description: "one versus one"},
		{ModeID: "tdm", DisplayName: "Team Deathmatch", TeamSize: 8},
		{ModeID: "ctf", DisplayName: "Capture the Flag", TeamSize: 8},
	}
	for _, mode := range modes {
		if err := svc.AddMode(ctx, mode); err != nil && !seededAlready(err, apperrors.CodeModeExists) {
			return fmt.Errorf("seed mode %s: %w", mode.ModeID, err)
		}
	}

	aliases := map[string]string{
		"1v1":  "duel",
		"team": "tdm",
		"flag": "ctf",
	}
	for alias, modeID := range aliases {
		err := svc.AddAlias(ctx, alias, modeID)
		if err != nil && !seededAlready(err, apperrors.CodeAliasExists) {
			return fmt.Errorf("seed alias %s: %w", alias, err)
		}
	}

	if err := svc.EnableRatingPool(ctx, "duel", true); err != nil {
		return fmt.Errorf("enable duel rating pool: %w", err)
	}
	if err := svc.SetRatingPoolPrefix(ctx, "duel", "1v1"); err != nil {
		return fmt.Errorf("set duel pool prefix: %w", err)
	}
	return nil
}

func seedMaps(ctx context.Context, svc *service.Service, tenant string) error {
	pools := map[string][]string{
		"duel": {"Aerowalk", "Blood Run", "Campgrounds"},
		"ctf":  {"Facing Worlds", "Spirit of Vengeance"},
	}
	for prefix, maps := range pools {
		for _, name := range maps {
			err := svc.AddMap(ctx, tenant, prefix, name)
			if err != nil && !seededAlready(err, apperrors.CodeMapExists) {
				return fmt.Errorf("seed map %s/%s: %w", prefix, name, err)
			}
		}
	}
	return nil
}

func seedPlayers(ctx context.Context, store *sqlite.Store, svc *service.Service, tenant string) error {
	players := []struct {
		id, username, display string
		rating                float64
	}{
		{"100001", "shade", "Shade", 1400},
		{"100002", "nitro", "Nitro", 1250},
		{"100003", "wisp", "Wisp", 1000},
		{"100004", "talon", "Talon", 900},
	}
	for _, p := range players {
		if _, err := svc.RegisterPlayer(ctx, tenant, p.id, p.username, p.display); err != nil {
			return fmt.Errorf("seed player %s: %w", p.id, err)
		}
		if err := svc.AssignRating(ctx, tenant, p.id, p.rating); err != nil {
			return fmt.Errorf("seed rating for %s: %w", p.id, err)
		}
	}
	if err := store.AddAdmin(ctx, "100001", tenant); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// seededAlready reports whether err is an acceptable duplicate from a rerun.
func seededAlready(err error, code apperrors.Code) bool {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
