// Package maintenance implements the operator CLI: bulk rating imports,
// cooldown pruning, and ledger listings over a directly opened store.
package maintenance

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/fallacylabs/pugledger/internal/ledger/service"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath  string        `env:"PUGLEDGER_DB_PATH"`
	Timeout time.Duration `env:"PUGLEDGER_MAINTENANCE_TIMEOUT" envDefault:"10m"`

	Tenant         string
	ImportRatings  string
	PruneCooldowns bool
	CooldownKeep   int
	ListPlayers    bool
	ListModes      bool
}

type envConfig struct {
	DBPath  string        `env:"PUGLEDGER_DB_PATH"`
	Timeout time.Duration `env:"PUGLEDGER_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:       envCfg.DBPath,
		Timeout:      envCfg.Timeout,
		CooldownKeep: 25,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to ledger sqlite database (default: PUGLEDGER_DB_PATH or data/ledger.db)")
	fs.StringVar(&cfg.Tenant, "tenant", storage.DefaultTenant, "tenant to operate on")
	fs.StringVar(&cfg.ImportRatings, "import-ratings", "", "CSV file of player_id,rating rows to bulk-import")
	fs.BoolVar(&cfg.PruneCooldowns, "prune-cooldowns", false, "trim every map pool's cooldown log")
	fs.IntVar(&cfg.CooldownKeep, "cooldown-keep", cfg.CooldownKeep, "cooldown events to keep per pool when pruning")
	fs.BoolVar(&cfg.ListPlayers, "list-players", false, "list the tenant's players")
	fs.BoolVar(&cfg.ListModes, "list-modes", false, "list registered game modes")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command. With no action flags it opens the
// store, which applies pending migrations, and reports that.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if strings.TrimSpace(cfg.Tenant) == "" {
		return errors.New("-tenant is required")
	}
	if cfg.PruneCooldowns && cfg.CooldownKeep < 0 {
		return errors.New("-cooldown-keep must be >= 0")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close ledger store: %v\n", closeErr)
		}
	}()

	return runWithDeps(ctx, cfg, store, out, errOut)
}

// runWithDeps contains the core maintenance logic with an injectable store.
func runWithDeps(ctx context.Context, cfg Config, store *sqlite.Store, out io.Writer, errOut io.Writer) error {
	svc := service.New(store)

	ran := false
	if cfg.ImportRatings != "" {
		ran = true
		if err := runImportRatings(ctx, svc, cfg, out, errOut); err != nil {
			return err
		}
	}
	if cfg.PruneCooldowns {
		ran = true
		if err := svc.PruneCooldowns(ctx, cfg.Tenant, cfg.CooldownKeep); err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned cooldown logs for tenant %s (keep=%d)\n", cfg.Tenant, cfg.CooldownKeep)
	}
	if cfg.ListPlayers {
		ran = true
		if err := runListPlayers(ctx, store, cfg.Tenant, out); err != nil {
			return err
		}
	}
	if cfg.ListModes {
		ran = true
		if err := runListModes(ctx, svc, out); err != nil {
			return err
		}
	}

	if !ran {
		fmt.Fprintf(out, "Migrations applied to %s\n", cfg.DBPath)
	}
	return nil
}

func runImportRatings(ctx context.Context, svc *service.Service, cfg Config, out, errOut io.Writer) error {
	file, err := os.Open(cfg.ImportRatings)
	if err != nil {
		return fmt.Errorf("open ratings csv: %w", err)
	}
	defer file.Close()

	assignments, err := readAssignments(file)
	if err != nil {
		return err
	}

	report, err := svc.ImportRatings(ctx, cfg.Tenant, assignments)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d ratings (%d failed)\n", report.Succeeded, report.Failed)
	for _, message := range report.Errors {
		fmt.Fprintf(errOut, "Error: %s\n", message)
	}
	return nil
}

// readAssignments parses player_id,rating rows, tolerating a header row.
func readAssignments(r io.Reader) ([]storage.RatingAssignment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var assignments []storage.RatingAssignment
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ratings csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "player_id") {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("ratings csv line %d: bad rating %q", line, record[1])
		}
		assignments = append(assignments, storage.RatingAssignment{
			PlayerID: strings.TrimSpace(record[0]),
			Rating:   value,
		})
	}
	if len(assignments) == 0 {
		return nil, errors.New("ratings csv has no data rows")
	}
	return assignments, nil
}

func runListPlayers(ctx context.Context, store *sqlite.Store, tenantID string, out io.Writer) error {
	players, err := store.ListPlayers(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	fmt.Fprintf(out, "%d players in tenant %s\n", len(players), tenantID)
	for _, player := range players {
		ratingText := "unrated"
		if player.Rating != nil {
			ratingText = strconv.FormatFloat(*player.Rating, 'f', 0, 64)
		}
		fmt.Fprintf(out, "- %s %s rating=%s wins=%d losses=%d streak=%d\n",
			player.PlayerID, player.Username, ratingText,
			player.Wins, player.Losses, player.CurrentStreak)
	}
	return nil
}

func runListModes(ctx context.Context, svc *service.Service, out io.Writer) error {
	modes, err := svc.ListModes(ctx)
	if err != nil {
		return fmt.Errorf("list modes: %w", err)
	}
	fmt.Fprintf(out, "%d modes\n", len(modes))
	for _, mode := range modes {
		pool := ""
		if mode.RatingPoolEnabled {
			pool = " pool=" + service.EffectiveRatingKey(mode)
		}
		fmt.Fprintf(out, "- %s %q players=%d%s\n", mode.ModeID, mode.DisplayName, mode.TeamSize, pool)
	}
	return nil
}
