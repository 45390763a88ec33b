// Package statsync links ledger players to an external stats website: a
// scraping client fetches per-player statistics and a runner writes the
// sync watermark back through the ledger's single external-stats write path.
package statsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fallacylabs/pugledger/internal/platform/timeouts"
)

// ErrPlayerNotFound indicates the stats site has no profile for the name.
var ErrPlayerNotFound = errors.New("player not found on stats site")

// Stats is one scraped player profile.
type Stats struct {
	Kills          int
	Deaths         int
	Suicides       int
	Efficiency     float64
	MatchesPlayed  int
	TimePlayed     string
	FavoriteWeapon string
}

// Client scrapes a stats website. The site is configured by base URL and
// search path; the search endpoint takes the player name as a query
// parameter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	searchPath string
}

// NewClient builds a scraping client for one stats site.
func NewClient(baseURL, searchPath string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeouts.HTTPRequest},
		baseURL:    strings.TrimRight(baseURL, "/"),
		searchPath: searchPath,
	}
}

// SearchPlayer fetches and parses one player's profile. Transport errors
// get a single retry after a short backoff; a missing profile reports
// ErrPlayerNotFound.
func (c *Client) SearchPlayer(ctx context.Context, playerName string) (Stats, error) {
	if strings.TrimSpace(playerName) == "" {
		return Stats{}, fmt.Errorf("player name is required")
	}

	searchURL := c.baseURL + c.searchPath + "?player=" + url.QueryEscape(playerName)
	resp, err := c.get(ctx, searchURL)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch stats for %s: %w", playerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, fmt.Errorf("stats site returned status %d for %s", resp.StatusCode, playerName)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Stats{}, fmt.Errorf("parse stats page for %s: %w", playerName, err)
	}
	return parseStats(doc)
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		return resp, nil
	}

	// One retry after a short backoff covers transient transport faults.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeouts.HTTPRetryBackoff):
	}
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if reqErr != nil {
		return nil, reqErr
	}
	return c.httpClient.Do(req)
}

// parseStats reads the profile's stats table: two-cell rows with a label
// and a value.
func parseStats(doc *goquery.Document) (Stats, error) {
	table := doc.Find("table.stats").First()
	if table.Length() == 0 {
		return Stats{}, ErrPlayerNotFound
	}

	var stats Stats
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())

		switch label {
		case "Kills":
			stats.Kills = parseCount(value)
		case "Deaths":
			stats.Deaths = parseCount(value)
		case "Suicides":
			stats.Suicides = parseCount(value)
		case "Efficiency":
			stats.Efficiency = parsePercent(value)
		case "Matches Played":
			stats.MatchesPlayed = parseCount(value)
		case "Time Played":
			stats.TimePlayed = value
		case "Favorite Weapon":
			stats.FavoriteWeapon = value
		}
	})
	return stats, nil
}

func parseCount(value string) int {
	value = strings.ReplaceAll(value, ",", "")
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parsePercent(value string) float64 {
	value = strings.TrimSuffix(strings.TrimSpace(value), "%")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
