package maintenance

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fallacylabs/pugledger/internal/ledger/service"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.DBPath != filepath.Join("data", "ledger.db") {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.Tenant != storage.DefaultTenant {
		t.Fatalf("tenant = %q", cfg.Tenant)
	}
	if cfg.CooldownKeep != 25 {
		t.Fatalf("cooldown keep = %d", cfg.CooldownKeep)
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-db-path", "/tmp/other.db",
		"-tenant", "guild-1",
		"-import-ratings", "ratings.csv",
		"-prune-cooldowns",
		"-cooldown-keep", "7",
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.Tenant != "guild-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ImportRatings != "ratings.csv" || !cfg.PruneCooldowns || cfg.CooldownKeep != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestReadAssignmentsSkipsHeader(t *testing.T) {
	input := "player_id,rating\n101,1200\n102, 950.5\n"
	assignments, err := readAssignments(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readAssignments: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(assignments))
	}
	if assignments[0].PlayerID != "101" || assignments[0].Rating != 1200 {
		t.Fatalf("first row = %+v", assignments[0])
	}
	if assignments[1].Rating != 950.5 {
		t.Fatalf("second row = %+v", assignments[1])
	}
}

func TestReadAssignmentsRejectsBadRating(t *testing.T) {
	if _, err := readAssignments(strings.NewReader("101,high\n")); err == nil {
		t.Fatal("expected error for non-numeric rating")
	}
}

func TestReadAssignmentsRejectsEmpty(t *testing.T) {
	if _, err := readAssignments(strings.NewReader("player_id,rating\n")); err == nil {
		t.Fatal("expected error for header-only csv")
	}
}

func TestRunRequiresTenant(t *testing.T) {
	err := Run(context.Background(), Config{DBPath: filepath.Join(t.TempDir(), "ledger.db"), Tenant: "  "}, nil, nil)
	if err == nil {
		t.Fatal("expected error for blank tenant")
	}
}

func TestRunMigrateOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	var out bytes.Buffer
	cfg := Config{DBPath: dbPath, Tenant: storage.DefaultTenant}
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Migrations applied") {
		t.Fatalf("output = %q", out.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database was not created: %v", err)
	}
}

func TestRunImportRatings(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	csvPath := filepath.Join(dir, "ratings.csv")
	csvBody := "player_id,rating\n101,1200\nabc,900\n102,1400\n"
	if err := os.WriteFile(csvPath, []byte(csvBody), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	var out, errOut bytes.Buffer
	cfg := Config{
		DBPath:        dbPath,
		Tenant:        "guild-1",
		ImportRatings: csvPath,
	}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Imported 2 ratings (1 failed)") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "abc") {
		t.Fatalf("error output = %q", errOut.String())
	}
}

func TestRunListModes(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	seed := Config{DBPath: dbPath, Tenant: storage.DefaultTenant}
	if err := Run(context.Background(), seed, nil, nil); err != nil {
		t.Fatalf("Run (migrate): %v", err)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store)
	mode := storage.GameMode{ModeID: "duel", DisplayName: "Duel", TeamSize: 2}
	if err := svc.AddMode(context.Background(), mode); err != nil {
		t.Fatalf("AddMode: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	var out bytes.Buffer
	cfg := Config{DBPath: dbPath, Tenant: storage.DefaultTenant, ListModes: true}
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run (list): %v", err)
	}
	if !strings.Contains(out.String(), "duel") {
		t.Fatalf("output = %q", out.String())
	}
}
