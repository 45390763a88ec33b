// Package storage defines persistence contracts for the matchmaking ledger.
// All entities except settings are tenant-scoped: a bare player identifier
// is never globally unique, only the (player, tenant) pair is.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing. Absence is a routine
// outcome, distinct from a failure.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrMatchNotActive indicates a lifecycle transition was attempted on a
// match that already reached a terminal status.
var ErrMatchNotActive = errors.New("match is not active")

// ErrAliasShadowsMode indicates an alias would collide with a real mode id.
var ErrAliasShadowsMode = errors.New("alias shadows a mode id")

// Match lifecycle statuses. Completed and killed are terminal.
const (
	MatchStatusActive    = "active"
	MatchStatusCompleted = "completed"
	MatchStatusKilled    = "killed"
)

// Team labels for match membership.
const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

// DefaultTenant is the sentinel tenant assigned to rows that predate
// multi-tenancy during schema adoption.
const DefaultTenant = "default"

// ReservedModeID cannot be removed from the mode registry.
const ReservedModeID = "default"

// Player stores one tenant-scoped player row. Rating and PeakRating are nil
// until assigned: registration deliberately defers the starting rating to an
// administrative action, and the peak only exists once a rating update
// happened.
type Player struct {
	PlayerID           string
	TenantID           string
	Username           string
	DisplayName        string
	Wins               int
	Losses             int
	TotalMatches       int
	Rating             *float64
	PeakRating         *float64
	CurrentStreak      int
	BestWinStreak      int
	BestLossStreak     int
	Registered         bool
	ExternalName       string
	ExternalLastSynced *time.Time
	CreatedAt          time.Time
}

// GameMode stores one global mode definition. Modes are tenant-independent.
type GameMode struct {
	ModeID            string
	DisplayName       string
	TeamSize          int
	Description       string
	RatingPoolEnabled bool
	RatingPoolPrefix  string
}

// ModeRating stores one per-mode rating row. ModeKey is the effective
// rating key: a pool prefix shared by several modes, or a single mode id.
type ModeRating struct {
	PlayerID       string
	TenantID       string
	ModeKey        string
	Rating         float64
	PeakRating     float64
	Wins           int
	Losses         int
	CurrentStreak  int
	BestWinStreak  int
	BestLossStreak int
	UpdatedAt      time.Time
}

// Match stores one recorded contest with its resolved team memberships.
type Match struct {
	MatchID       int64
	ModeID        string
	Winner        string
	AvgRatingRed  float64
	AvgRatingBlue float64
	Status        string
	TiebreakerMap string
	CreatedAt     time.Time
	RedTeam       []string
	BlueTeam      []string
}

// RatingAssignment is one row of a bulk administrative rating import.
type RatingAssignment struct {
	PlayerID string
	Rating   float64
}

// BulkRatingReport summarizes a partial-failure bulk import: per-row errors
// never abort the remaining rows.
type BulkRatingReport struct {
	Succeeded int
	Failed    int
	Errors    []string
}

// Timeout stores one tenant-scoped player timeout.
type Timeout struct {
	PlayerID  string
	TenantID  string
	ExpiresAt time.Time
}

// PlayerStore persists tenant-scoped player rows.
type PlayerStore interface {
	GetPlayer(ctx context.Context, playerID, tenantID string) (Player, error)
	RegisterPlayer(ctx context.Context, playerID, tenantID, username, displayName string) (Player, error)
	PlayerExists(ctx context.Context, playerID, tenantID string) (bool, error)
	UpdatePlayerNames(ctx context.Context, playerID, tenantID, username, displayName string) error
	FindPlayerByName(ctx context.Context, tenantID, name string) (string, error)
	DeletePlayer(ctx context.Context, playerID, tenantID string) (bool, error)
	ListPlayers(ctx context.Context, tenantID string) ([]Player, error)
	SetPlayerTotalMatches(ctx context.Context, playerID, tenantID string, total int) (bool, error)
	SetExternalStats(ctx context.Context, playerID, tenantID, externalName string, syncedAt time.Time) error
}

// AdminStore persists tenant-scoped admin membership.
type AdminStore interface {
	AddAdmin(ctx context.Context, playerID, tenantID string) error
	RemoveAdmin(ctx context.Context, playerID, tenantID string) error
	IsAdmin(ctx context.Context, playerID, tenantID string) (bool, error)
	ListAdmins(ctx context.Context, tenantID string) ([]string, error)
}

// ModeStore persists global game-mode definitions and aliases.
type ModeStore interface {
	CreateMode(ctx context.Context, mode GameMode) error
	RemoveMode(ctx context.Context, modeID string) error
	GetMode(ctx context.Context, modeID string) (GameMode, error)
	ListModes(ctx context.Context) ([]GameMode, error)
	SetRatingPoolEnabled(ctx context.Context, modeID string, enabled bool) error
	SetRatingPoolPrefix(ctx context.Context, modeID, prefix string) error
	ListRatingPoolModes(ctx context.Context) ([]string, error)
	CreateAlias(ctx context.Context, alias, modeID string) error
	RemoveAlias(ctx context.Context, alias string) error
	ListAliases(ctx context.Context, modeID string) ([]string, error)
	ResolveAlias(ctx context.Context, name string) (string, error)
}

// RatingStore persists rating values and streak bookkeeping, tenant-global
// and per-mode pool.
type RatingStore interface {
	UpdatePlayerRating(ctx context.Context, playerID, tenantID string, newRating float64) error
	UpdatePlayerStats(ctx context.Context, playerID, tenantID string, won bool) error
	GetModeRating(ctx context.Context, playerID, tenantID, modeKey string) (ModeRating, error)
	UpdateModeRating(ctx context.Context, playerID, tenantID, modeKey string, newRating float64) error
	UpdateModeStats(ctx context.Context, playerID, tenantID, modeKey string, won bool) error
	ListModeRatings(ctx context.Context, playerID, tenantID string) ([]ModeRating, error)
	BulkAssignRatings(ctx context.Context, tenantID string, assignments []RatingAssignment) (BulkRatingReport, error)
}

// MatchStore persists the match ledger.
type MatchStore interface {
	RecordMatch(ctx context.Context, redTeam, blueTeam []string, modeID string, avgRed, avgBlue float64, tiebreakerMap string) (int64, error)
	SetWinner(ctx context.Context, matchID int64, team string) error
	KillMatch(ctx context.Context, matchID int64) error
	GetMatch(ctx context.Context, matchID int64) (Match, error)
	RecentMatches(ctx context.Context, limit int) ([]Match, error)
	LastMatchID(ctx context.Context) (int64, error)
}

// MapStore persists per-tenant map pools and the cooldown log.
type MapStore interface {
	AddMap(ctx context.Context, tenantID, modePrefix, mapName string) error
	RemoveMap(ctx context.Context, tenantID, modePrefix, mapName string) error
	ListMaps(ctx context.Context, tenantID, modePrefix string) ([]string, error)
	ListMapsGrouped(ctx context.Context, tenantID string) (map[string][]string, error)
	RecordMapUse(ctx context.Context, tenantID, modePrefix, mapName string) error
	MapsOnCooldown(ctx context.Context, tenantID, modePrefix string, count int) ([]string, error)
	PruneMapCooldowns(ctx context.Context, tenantID, modePrefix string, keep int) error
}

// SettingStore persists global key/value settings.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// TimeoutStore persists tenant-scoped player timeouts.
type TimeoutStore interface {
	SetTimeout(ctx context.Context, playerID, tenantID string, until time.Time) error
	ClearTimeout(ctx context.Context, playerID, tenantID string) error
	ActiveTimeout(ctx context.Context, playerID, tenantID string, now time.Time) (*time.Time, error)
}

// Recognized setting keys.
const (
	SettingStatsSyncEnabled = "stats_sync_enabled"
	// SettingRatingPoolsEnabled is the legacy global rating-pool flag,
	// superseded by the per-mode RatingPoolEnabled column.
	SettingRatingPoolsEnabled = "rating_pools_enabled"
	// SettingMatchCounter is reserved for match numbering.
	SettingMatchCounter = "match_counter"
)
