package statsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const profileHTML = `<html><body>
<h1>fallacy</h1>
<table class="stats">
<tr><td>Kills</td><td>12,345</td></tr>
<tr><td>Deaths</td><td>6789</td></tr>
<tr><td>Suicides</td><td>12</td></tr>
<tr><td>Efficiency</td><td>64.5%</td></tr>
<tr><td>Matches Played</td><td>321</td></tr>
<tr><td>Time Played</td><td>240h</td></tr>
<tr><td>Favorite Weapon</td><td>Shock Rifle</td></tr>
</table>
</body></html>`

func TestSearchPlayerParsesProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("player"); got != "fallacy" {
			t.Errorf("player param = %q, want fallacy", got)
		}
		_, _ = w.Write([]byte(profileHTML))
	}))
	defer server.Close()

	client := NewClient(server.URL, "/search")
	stats, err := client.SearchPlayer(context.Background(), "fallacy")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if stats.Kills != 12345 || stats.Deaths != 6789 || stats.Suicides != 12 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.Efficiency != 64.5 {
		t.Fatalf("efficiency = %v, want 64.5", stats.Efficiency)
	}
	if stats.MatchesPlayed != 321 || stats.TimePlayed != "240h" {
		t.Fatalf("matches/time = %d/%q", stats.MatchesPlayed, stats.TimePlayed)
	}
	if stats.FavoriteWeapon != "Shock Rifle" {
		t.Fatalf("weapon = %q", stats.FavoriteWeapon)
	}
}

func TestSearchPlayerMissingProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>no results</p></body></html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "/search")
	_, err := client.SearchPlayer(context.Background(), "nobody")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
}

func TestSearchPlayerBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "/search")
	if _, err := client.SearchPlayer(context.Background(), "anyone"); err == nil {
		t.Fatal("expected error for bad status")
	}
}

func TestSearchPlayerRetriesTransportFault(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			// Drop the first connection mid-request.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijacking unsupported")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(profileHTML))
	}))
	defer server.Close()

	client := NewClient(server.URL, "/search")
	stats, err := client.SearchPlayer(context.Background(), "fallacy")
	if err != nil {
		t.Fatalf("search after retry: %v", err)
	}
	if stats.Kills != 12345 {
		t.Fatalf("kills = %d, want parsed profile from retry", stats.Kills)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2", hits)
	}
}

func TestSearchPlayerRequiresName(t *testing.T) {
	client := NewClient("http://example.invalid", "/search")
	if _, err := client.SearchPlayer(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank name")
	}
}
