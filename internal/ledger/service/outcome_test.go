package service

import (
	"context"
	"path/filepath"
	"testing"

	apperrors "github.com/fallacylabs/pugledger/internal/platform/errors"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite"
)

func newOutcomeFixture(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	svc := New(store)
	ctx := context.Background()

	if err := svc.AddMode(ctx, storage.GameMode{ModeID: "duel", DisplayName: "Duel", TeamSize: 2}); err != nil {
		t.Fatalf("add mode: %v", err)
	}
	for _, id := range []string{"1", "2"} {
		if _, err := svc.RegisterPlayer(ctx, "guild-a", id, "u"+id, "U"+id); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return svc, store
}

func TestCreateMatchValidatesRosters(t *testing.T) {
	svc, _ := newOutcomeFixture(t)
	ctx := context.Background()

	_, err := svc.CreateMatch(ctx, "guild-a", []string{"1", "2"}, []string{"3"}, "duel", "")
	wantCode(t, err, apperrors.CodeTeamInvalid)

	_, err = svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"1"}, "duel", "")
	wantCode(t, err, apperrors.CodeTeamInvalid)

	_, err = svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"2"}, "ghost", "")
	wantCode(t, err, apperrors.CodeModeNotFound)
}

func TestCreateMatchSnapshotsAverageRatings(t *testing.T) {
	svc, _ := newOutcomeFixture(t)
	ctx := context.Background()

	if err := svc.AssignRating(ctx, "guild-a", "1", 1400); err != nil {
		t.Fatalf("assign: %v", err)
	}

	matchID, err := svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"2"}, "duel", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	match, err := svc.Match(ctx, matchID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if match.AvgRatingRed != 1400 {
		t.Fatalf("avg red = %v, want 1400", match.AvgRatingRed)
	}
	// The unrated side snapshots at the starting rating.
	if match.AvgRatingBlue != 1000 {
		t.Fatalf("avg blue = %v, want 1000", match.AvgRatingBlue)
	}
}

func TestCompleteMatchAppliesOutcome(t *testing.T) {
	svc, store := newOutcomeFixture(t)
	ctx := context.Background()

	matchID, err := svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"2"}, "duel", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CompleteMatch(ctx, "guild-a", matchID, storage.TeamRed); err != nil {
		t.Fatalf("complete: %v", err)
	}

	winner, err := store.GetPlayer(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("get winner: %v", err)
	}
	if winner.Wins != 1 || winner.CurrentStreak != 1 || winner.TotalMatches != 1 {
		t.Fatalf("winner = %+v, want one win", winner)
	}
	loser, err := store.GetPlayer(ctx, "2", "guild-a")
	if err != nil {
		t.Fatalf("get loser: %v", err)
	}
	if loser.Losses != 1 || loser.CurrentStreak != -1 {
		t.Fatalf("loser = %+v, want one loss", loser)
	}

	// Terminal matches refuse a second completion.
	err = svc.CompleteMatch(ctx, "guild-a", matchID, storage.TeamBlue)
	wantCode(t, err, apperrors.CodeMatchNotActive)
}

func TestCompleteMatchFeedsRatingPool(t *testing.T) {
	svc, store := newOutcomeFixture(t)
	ctx := context.Background()

	if err := svc.EnableRatingPool(ctx, "duel", true); err != nil {
		t.Fatalf("enable pool: %v", err)
	}
	if err := svc.SetRatingPoolPrefix(ctx, "duel", "1v1"); err != nil {
		t.Fatalf("set prefix: %v", err)
	}

	matchID, err := svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"2"}, "duel", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CompleteMatch(ctx, "guild-a", matchID, storage.TeamBlue); err != nil {
		t.Fatalf("complete: %v", err)
	}

	record, err := store.GetModeRating(ctx, "2", "guild-a", "1v1")
	if err != nil {
		t.Fatalf("pool rating: %v", err)
	}
	if record.Wins != 1 || record.CurrentStreak != 1 {
		t.Fatalf("pool record = %+v, want one win under the shared key", record)
	}
}

func TestVoidMatchSkipsCounters(t *testing.T) {
	svc, store := newOutcomeFixture(t)
	ctx := context.Background()

	matchID, err := svc.CreateMatch(ctx, "guild-a", []string{"1"}, []string{"2"}, "duel", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.VoidMatch(ctx, matchID); err != nil {
		t.Fatalf("void: %v", err)
	}

	player, err := store.GetPlayer(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if player.TotalMatches != 0 {
		t.Fatalf("total = %d, want 0 after void", player.TotalMatches)
	}

	err = svc.CompleteMatch(ctx, "guild-a", matchID, storage.TeamRed)
	wantCode(t, err, apperrors.CodeMatchNotActive)

	wantCode(t, svc.VoidMatch(ctx, 9999), apperrors.CodeMatchNotFound)
}

func TestCompleteMatchValidatesWinner(t *testing.T) {
	svc, _ := newOutcomeFixture(t)
	ctx := context.Background()

	err := svc.CompleteMatch(ctx, "guild-a", 1, "green")
	wantCode(t, err, apperrors.CodeTeamInvalid)

	err = svc.CompleteMatch(ctx, "guild-a", 9999, storage.TeamRed)
	wantCode(t, err, apperrors.CodeMatchNotFound)
}
