package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/fallacylabs/pugledger/internal/ledger/rating"
	"github.com/fallacylabs/pugledger/internal/ledger/storage"
)

func TestUpdatePlayerRatingTracksPeak(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RegisterPlayer(ctx, "1", "guild-a", "ada", "Ada"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.UpdatePlayerRating(ctx, "1", "guild-a", 1200); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	player, err := store.GetPlayer(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if player.Rating == nil || *player.Rating != 1200 {
		t.Fatalf("rating = %v, want 1200", player.Rating)
	}
	if player.PeakRating == nil || *player.PeakRating != 1200 {
		t.Fatalf("peak = %v, want 1200", player.PeakRating)
	}

	// A drop keeps the watermark.
	if err := store.UpdatePlayerRating(ctx, "1", "guild-a", 1100); err != nil {
		t.Fatalf("second rating: %v", err)
	}
	player, err = store.GetPlayer(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("get after drop: %v", err)
	}
	if *player.Rating != 1100 || *player.PeakRating != 1200 {
		t.Fatalf("rating/peak = %v/%v, want 1100/1200", *player.Rating, *player.PeakRating)
	}

	if err := store.UpdatePlayerRating(ctx, "404", "guild-a", 1000); err != storage.ErrNotFound {
		t.Fatalf("missing player err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePlayerStatsStreaks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RegisterPlayer(ctx, "1", "guild-a", "ada", "Ada"); err != nil {
		t.Fatalf("register: %v", err)
	}

	outcomes := []bool{true, true, false, false, false, true}
	for i, won := range outcomes {
		if err := store.UpdatePlayerStats(ctx, "1", "guild-a", won); err != nil {
			t.Fatalf("outcome %d: %v", i, err)
		}
	}

	player, err := store.GetPlayer(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if player.Wins != 3 || player.Losses != 3 || player.TotalMatches != 6 {
		t.Fatalf("w/l/t = %d/%d/%d, want 3/3/6", player.Wins, player.Losses, player.TotalMatches)
	}
	if player.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want 1", player.CurrentStreak)
	}
	if player.BestWinStreak != 2 || player.BestLossStreak != 3 {
		t.Fatalf("best w/l = %d/%d, want 2/3", player.BestWinStreak, player.BestLossStreak)
	}
}

func TestUpdatePlayerStatsKeepsUnregistered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Bulk-imported rows participate in matches without opting in.
	report, err := store.BulkAssignRatings(ctx, "guild-a", []storage.RatingAssignment{
		{PlayerID: "42", Rating: 1100},
	})
	if err != nil {
		t.Fatalf("bulk assign: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", report.Succeeded)
	}

	if err := store.UpdatePlayerStats(ctx, "42", "guild-a", true); err != nil {
		t.Fatalf("stats update: %v", err)
	}

	player, err := store.GetPlayer(ctx, "42", "guild-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if player.Registered {
		t.Fatal("stats update flipped the registered flag on")
	}
	if player.Wins != 1 || player.TotalMatches != 1 {
		t.Fatalf("w/t = %d/%d, want 1/1", player.Wins, player.TotalMatches)
	}
}

func TestGetModeRatingDefaults(t *testing.T) {
	store := openTestStore(t)

	record, err := store.GetModeRating(context.Background(), "1", "guild-a", "ctf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Rating != rating.DefaultRating || record.PeakRating != rating.DefaultRating {
		t.Fatalf("rating/peak = %v/%v, want starting values", record.Rating, record.PeakRating)
	}
	if record.Wins != 0 || record.CurrentStreak != 0 {
		t.Fatalf("counters should start zeroed: %+v", record)
	}
}

func TestSharedPoolRowAcrossModes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Two modes feeding the same pool key touch one row.
	if err := store.UpdateModeRating(ctx, "1", "guild-a", "ctf", 1050); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := store.UpdateModeStats(ctx, "1", "guild-a", "ctf", true); err != nil {
		t.Fatalf("stats update: %v", err)
	}

	record, err := store.GetModeRating(ctx, "1", "guild-a", "ctf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Rating != 1050 || record.Wins != 1 || record.CurrentStreak != 1 {
		t.Fatalf("record = %+v, want rating 1050 with one win", record)
	}

	ratings, err := store.ListModeRatings(ctx, "1", "guild-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("len = %d, want one shared row", len(ratings))
	}
}

func TestUpdateModeRatingPeakWatermark(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpdateModeRating(ctx, "1", "guild-a", "duel", 1300); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := store.UpdateModeRating(ctx, "1", "guild-a", "duel", 900); err != nil {
		t.Fatalf("drop: %v", err)
	}
	record, err := store.GetModeRating(ctx, "1", "guild-a", "duel")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Rating != 900 || record.PeakRating != 1300 {
		t.Fatalf("rating/peak = %v/%v, want 900/1300", record.Rating, record.PeakRating)
	}
}

func TestBulkAssignRatingsPartialFailure(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report, err := store.BulkAssignRatings(ctx, "guild-a", []storage.RatingAssignment{
		{PlayerID: "123", Rating: 1500},
		{PlayerID: "abc", Rating: 1200},
		{PlayerID: "456", Rating: 900},
	})
	if err != nil {
		t.Fatalf("bulk assign: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 2 succeeded 1 failed", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "abc") {
		t.Fatalf("errors = %v, want one mentioning abc", report.Errors)
	}

	player, err := store.GetPlayer(ctx, "123", "guild-a")
	if err != nil {
		t.Fatalf("get 123: %v", err)
	}
	if player.Rating == nil || *player.Rating != 1500 {
		t.Fatalf("rating = %v, want 1500", player.Rating)
	}
	if _, err := store.GetPlayer(ctx, "abc", "guild-a"); err != storage.ErrNotFound {
		t.Fatalf("invalid row must not be written, err = %v", err)
	}
}

func TestBulkAssignRatingsKeepsPeakOnReimport(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, value := range []float64{1400, 1100} {
		report, err := store.BulkAssignRatings(ctx, "guild-a", []storage.RatingAssignment{{PlayerID: "7", Rating: value}})
		if err != nil {
			t.Fatalf("assign %v: %v", value, err)
		}
		if report.Succeeded != 1 {
			t.Fatalf("succeeded = %d, want 1", report.Succeeded)
		}
	}

	player, err := store.GetPlayer(ctx, "7", "guild-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *player.Rating != 1100 || *player.PeakRating != 1400 {
		t.Fatalf("rating/peak = %v/%v, want 1100/1400", *player.Rating, *player.PeakRating)
	}
}
