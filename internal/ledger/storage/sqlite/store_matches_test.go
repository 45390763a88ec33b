package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

func TestMatchLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	matchID, err := store.RecordMatch(ctx, []string{"1", "2"}, []string{"3", "4"}, "ctf4", 1200, 1180, "longest_yard")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if matchID == 0 {
		t.Fatal("match id should be assigned")
	}

	match, err := store.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if match.Status != storage.MatchStatusActive {
		t.Fatalf("status = %q, want active", match.Status)
	}
	if match.TiebreakerMap != "longest_yard" {
		t.Fatalf("tiebreaker = %q, want longest_yard", match.TiebreakerMap)
	}
	if len(match.RedTeam) != 2 || match.RedTeam[0] != "1" || match.RedTeam[1] != "2" {
		t.Fatalf("red = %v, want [1 2]", match.RedTeam)
	}
	if len(match.BlueTeam) != 2 || match.BlueTeam[0] != "3" || match.BlueTeam[1] != "4" {
		t.Fatalf("blue = %v, want [3 4]", match.BlueTeam)
	}

	if err := store.SetWinner(ctx, matchID, storage.TeamRed); err != nil {
		t.Fatalf("set winner: %v", err)
	}
	match, err = store.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get after winner: %v", err)
	}
	if match.Status != storage.MatchStatusCompleted || match.Winner != storage.TeamRed {
		t.Fatalf("status/winner = %q/%q, want completed/red", match.Status, match.Winner)
	}

	// Terminal matches refuse further transitions.
	if err := store.SetWinner(ctx, matchID, storage.TeamBlue); !errors.Is(err, storage.ErrMatchNotActive) {
		t.Fatalf("re-complete err = %v, want ErrMatchNotActive", err)
	}
	if err := store.KillMatch(ctx, matchID); !errors.Is(err, storage.ErrMatchNotActive) {
		t.Fatalf("kill completed err = %v, want ErrMatchNotActive", err)
	}
}

func TestKillMatchVoidsWithoutWinner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	matchID, err := store.RecordMatch(ctx, []string{"1"}, []string{"2"}, "duel", 1000, 1000, "")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.KillMatch(ctx, matchID); err != nil {
		t.Fatalf("kill: %v", err)
	}

	match, err := store.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if match.Status != storage.MatchStatusKilled {
		t.Fatalf("status = %q, want killed", match.Status)
	}
	if match.Winner != "" {
		t.Fatalf("winner = %q, want empty", match.Winner)
	}
	if err := store.SetWinner(ctx, matchID, storage.TeamRed); !errors.Is(err, storage.ErrMatchNotActive) {
		t.Fatalf("complete killed err = %v, want ErrMatchNotActive", err)
	}
}

func TestSetWinnerValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	matchID, err := store.RecordMatch(ctx, []string{"1"}, []string{"2"}, "duel", 1000, 1000, "")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.SetWinner(ctx, matchID, "green"); err == nil {
		t.Fatal("expected error for unknown team")
	}
	if err := store.SetWinner(ctx, 9999, storage.TeamRed); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing match err = %v, want ErrNotFound", err)
	}
}

func TestRecentMatchesNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.RecordMatch(ctx, []string{"1"}, []string{"2"}, "duel", 1000, 1000, "")
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	matches, err := store.RecentMatches(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len = %d, want 2", len(matches))
	}
	if matches[0].MatchID != ids[2] || matches[1].MatchID != ids[1] {
		t.Fatalf("order = [%d %d], want [%d %d]", matches[0].MatchID, matches[1].MatchID, ids[2], ids[1])
	}
	if len(matches[0].RedTeam) != 1 {
		t.Fatal("recent matches should carry team memberships")
	}

	last, err := store.LastMatchID(ctx)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != ids[2] {
		t.Fatalf("last = %d, want %d", last, ids[2])
	}
}

func TestLastMatchIDEmptyLedger(t *testing.T) {
	store := openTestStore(t)
	last, err := store.LastMatchID(context.Background())
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != 0 {
		t.Fatalf("last = %d, want 0", last)
	}
}

func TestRecordMatchRequiresTeams(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.RecordMatch(context.Background(), nil, []string{"2"}, "duel", 0, 0, ""); err == nil {
		t.Fatal("expected error for empty red team")
	}
}
