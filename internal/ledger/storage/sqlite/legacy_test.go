package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

// seedLegacyDatabase writes a pre-tenancy schema: single-tenant tables keyed
// by player id alone, with none of the later bookkeeping columns.
func seedLegacyDatabase(t *testing.T, path string) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer sqlDB.Close()

	statements := []string{
		`CREATE TABLE players (
			player_id TEXT PRIMARY KEY,
			username TEXT,
			display_name TEXT,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			total_matches INTEGER NOT NULL DEFAULT 0,
			rating REAL
		)`,
		`CREATE TABLE admins (player_id TEXT PRIMARY KEY)`,
		`CREATE TABLE maps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode_prefix TEXT NOT NULL,
			map_name TEXT NOT NULL
		)`,
		`INSERT INTO players (player_id, username, wins, losses, total_matches, rating)
		 VALUES ('100', 'ada', 6, 4, 10, 1250)`,
		`INSERT INTO players (player_id, username) VALUES ('200', 'grace')`,
		`INSERT INTO admins (player_id) VALUES ('100')`,
		`INSERT INTO maps (mode_prefix, map_name) VALUES ('ctf', 'aerowalk')`,
	}
	for _, statement := range statements {
		if _, err := sqlDB.Exec(statement); err != nil {
			t.Fatalf("seed legacy db: %v", err)
		}
	}
}

func TestOpenAdoptsLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	seedLegacyDatabase(t, path)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	player, err := store.GetPlayer(ctx, "100", storage.DefaultTenant)
	if err != nil {
		t.Fatalf("get adopted player: %v", err)
	}
	if player.Wins != 6 || player.Losses != 4 || player.TotalMatches != 10 {
		t.Fatalf("w/l/t = %d/%d/%d, want 6/4/10", player.Wins, player.Losses, player.TotalMatches)
	}
	if !player.Registered {
		t.Fatal("players with recorded matches must adopt as registered")
	}
	if player.Rating == nil || *player.Rating != 1250 {
		t.Fatalf("rating = %v, want 1250", player.Rating)
	}
	if player.PeakRating == nil || *player.PeakRating != 1250 {
		t.Fatalf("peak = %v, want seeded from rating", player.PeakRating)
	}

	idle, err := store.GetPlayer(ctx, "200", storage.DefaultTenant)
	if err != nil {
		t.Fatalf("get idle player: %v", err)
	}
	if idle.Registered {
		t.Fatal("players without matches must not adopt as registered")
	}
	if idle.Rating != nil || idle.PeakRating != nil {
		t.Fatal("unrated players must stay unrated through adoption")
	}

	isAdmin, err := store.IsAdmin(ctx, "100", storage.DefaultTenant)
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if !isAdmin {
		t.Fatal("admin rows must adopt under the default tenant")
	}

	maps, err := store.ListMaps(ctx, storage.DefaultTenant, "ctf")
	if err != nil {
		t.Fatalf("list maps: %v", err)
	}
	if len(maps) != 1 || maps[0] != "aerowalk" {
		t.Fatalf("maps = %v, want [aerowalk]", maps)
	}
}

func TestLegacyAdoptionPreservesDataAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	seedLegacyDatabase(t, path)

	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		player, err := store.GetPlayer(context.Background(), "100", storage.DefaultTenant)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if player.TotalMatches != 10 {
			t.Fatalf("total after open %d = %d, want 10", i, player.TotalMatches)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}

func TestFreshDatabaseSkipsAdoption(t *testing.T) {
	store := openTestStore(t)

	// The adoption step is recorded even when there was nothing to adopt,
	// so later opens never rerun it against current tables.
	var name string
	err := store.DB().QueryRow(
		`SELECT name FROM schema_migrations WHERE name = '0000_adopt_tenancy'`,
	).Scan(&name)
	if err != nil {
		t.Fatalf("adoption step not recorded: %v", err)
	}
}
