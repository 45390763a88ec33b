package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/platform/storage/sqlitemigrate"
)

// legacyRebuild describes one table that predates multi-tenancy. Rows copied
// out of the legacy shape are assigned the default tenant.
type legacyRebuild struct {
	table string
	// createSQL must match the shape the baseline migration would create.
	createSQL string
	// columns are the copyable target columns, tenant_id excluded.
	columns []string
}

var legacyRebuilds = []legacyRebuild{
	{
		table: "players",
		createSQL: `CREATE TABLE players (
			player_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			username TEXT,
			display_name TEXT,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			total_matches INTEGER NOT NULL DEFAULT 0,
			rating REAL,
			peak_rating REAL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_win_streak INTEGER NOT NULL DEFAULT 0,
			best_loss_streak INTEGER NOT NULL DEFAULT 0,
			registered INTEGER NOT NULL DEFAULT 0,
			external_name TEXT,
			external_last_synced INTEGER,
			created_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (player_id, tenant_id)
		)`,
		columns: []string{
			"player_id", "username", "display_name", "wins", "losses",
			"total_matches", "rating", "peak_rating", "current_streak",
			"best_win_streak", "best_loss_streak", "registered",
			"external_name", "external_last_synced", "created_at",
		},
	},
	{
		table: "admins",
		createSQL: `CREATE TABLE admins (
			player_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			PRIMARY KEY (player_id, tenant_id)
		)`,
		columns: []string{"player_id"},
	},
	{
		table: "player_mode_ratings",
		createSQL: `CREATE TABLE player_mode_ratings (
			player_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			mode_key TEXT NOT NULL,
			rating REAL NOT NULL DEFAULT 1000,
			peak_rating REAL NOT NULL DEFAULT 1000,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_win_streak INTEGER NOT NULL DEFAULT 0,
			best_loss_streak INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (player_id, tenant_id, mode_key)
		)`,
		columns: []string{
			"player_id", "mode_key", "rating", "peak_rating", "wins",
			"losses", "current_streak", "best_win_streak",
			"best_loss_streak", "updated_at",
		},
	},
	{
		table: "maps",
		createSQL: `CREATE TABLE maps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			mode_prefix TEXT NOT NULL,
			map_name TEXT NOT NULL,
			added_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE (tenant_id, mode_prefix, map_name)
		)`,
		columns: []string{"mode_prefix", "map_name", "added_at"},
	},
	{
		table: "map_cooldowns",
		createSQL: `CREATE TABLE map_cooldowns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			mode_prefix TEXT NOT NULL,
			map_name TEXT NOT NULL,
			used_at INTEGER NOT NULL DEFAULT 0
		)`,
		columns: []string{"mode_prefix", "map_name", "used_at"},
	},
	{
		table: "player_timeouts",
		createSQL: `CREATE TABLE player_timeouts (
			player_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (player_id, tenant_id)
		)`,
		columns: []string{"player_id", "expires_at"},
	},
}

// adoptionSteps returns the code migrations that rebuild pre-tenancy tables.
// Fresh databases record the step without touching anything.
func adoptionSteps() []sqlitemigrate.Step {
	return []sqlitemigrate.Step{
		{Name: "0000_adopt_tenancy", Run: adoptTenancy},
	}
}

// adoptTenancy rebuilds every legacy table that exists without a tenant_id
// column. The rebuilt rows all land under the default tenant, and the flags
// the legacy schema never tracked are derived from what it did track:
// players with recorded matches count as registered, and a missing peak
// seeds from the current rating.
func adoptTenancy(tx *sql.Tx) error {
	for _, rebuild := range legacyRebuilds {
		adopted, err := rebuildLegacyTable(tx, rebuild)
		if err != nil {
			return fmt.Errorf("adopt %s: %w", rebuild.table, err)
		}
		if !adopted || rebuild.table != "players" {
			continue
		}
		if _, err := tx.Exec(`UPDATE players SET registered = 1 WHERE total_matches > 0`); err != nil {
			return fmt.Errorf("backfill registered: %w", err)
		}
		if _, err := tx.Exec(`UPDATE players SET peak_rating = rating WHERE peak_rating IS NULL AND rating IS NOT NULL`); err != nil {
			return fmt.Errorf("backfill peak rating: %w", err)
		}
	}
	return nil
}

// rebuildLegacyTable renames a pre-tenancy table aside, recreates the current
// shape, and copies whichever legacy columns also exist today. Reports whether
// a rebuild actually happened.
func rebuildLegacyTable(tx *sql.Tx, rebuild legacyRebuild) (bool, error) {
	exists, err := tableExists(tx, rebuild.table)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	hasTenant, err := tableHasColumn(tx, rebuild.table, "tenant_id")
	if err != nil {
		return false, err
	}
	if hasTenant {
		return false, nil
	}

	legacyColumns, err := tableColumns(tx, rebuild.table)
	if err != nil {
		return false, err
	}
	shared := intersectColumns(rebuild.columns, legacyColumns)
	if len(shared) == 0 {
		return false, fmt.Errorf("table %s shares no columns with the current shape", rebuild.table)
	}

	legacyName := rebuild.table + "_legacy"
	if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, rebuild.table, legacyName)); err != nil {
		return false, fmt.Errorf("rename legacy table: %w", err)
	}
	if _, err := tx.Exec(rebuild.createSQL); err != nil {
		return false, fmt.Errorf("create table: %w", err)
	}

	columnList := strings.Join(shared, ", ")
	copySQL := fmt.Sprintf(
		`INSERT INTO %s (%s, tenant_id) SELECT %s, ? FROM %s`,
		rebuild.table, columnList, columnList, legacyName,
	)
	if _, err := tx.Exec(copySQL, storage.DefaultTenant); err != nil {
		return false, fmt.Errorf("copy legacy rows: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE %s`, legacyName)); err != nil {
		return false, fmt.Errorf("drop legacy table: %w", err)
	}
	return true, nil
}

func tableExists(tx *sql.Tx, table string) (bool, error) {
	var name string
	err := tx.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return true, nil
}

func tableHasColumn(tx *sql.Tx, table, column string) (bool, error) {
	columns, err := tableColumns(tx, table)
	if err != nil {
		return false, err
	}
	for _, name := range columns {
		if name == column {
			return true, nil
		}
	}
	return false, nil
}

func tableColumns(tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid        int
			name       string
			columnType string
			notNull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return columns, nil
}

func intersectColumns(target, legacy []string) []string {
	present := make(map[string]bool, len(legacy))
	for _, name := range legacy {
		present[name] = true
	}
	var shared []string
	for _, name := range target {
		if present[name] {
			shared = append(shared, name)
		}
	}
	return shared
}
