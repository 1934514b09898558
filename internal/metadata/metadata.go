// Package metadata enriches accounts with profile data from the Steam
// Web API. Lookups are cached on disk so repeated list invocations do
// not hammer the API.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrNoAPIKey means no Steam Web API key is configured.
	ErrNoAPIKey = errors.New("no Steam API key configured")
)

const (
	defaultBaseURL = "https://api.steampowered.com"

	// cacheTTL is how long a cached summary stays fresh.
	cacheTTL = 24 * time.Hour

	// requestGap spaces API calls out; the Web API throttles bursts.
	requestGap = 300 * time.Millisecond

	requestTimeout = 10 * time.Second
)

// Summary is the cached profile metadata for one account.
type Summary struct {
	SteamID      string    `json:"steam_id"`
	VACBanned    bool      `json:"vac_banned"`
	CommunityBan bool      `json:"community_ban"`
	GameCount    int       `json:"game_count"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Client fetches and caches account metadata.
type Client struct {
	apiKey    string
	baseURL   string
	cachePath string
	http      *http.Client
	now       func() time.Time

	mu       sync.Mutex
	cache    map[string]Summary
	lastCall time.Time
}

// NewClient creates a metadata client. cachePath is the JSON cache
// file; its parent directory is created on first save.
func NewClient(apiKey, cachePath string) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		cachePath: cachePath,
		http:      &http.Client{Timeout: requestTimeout},
		now:       time.Now,
	}
}

// Get returns the summary for steamID, from cache when fresh.
func (c *Client) Get(ctx context.Context, steamID string) (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache == nil {
		c.loadCacheLocked()
	}
	if cached, ok := c.cache[steamID]; ok && c.now().Sub(cached.FetchedAt) < cacheTTL {
		return cached, nil
	}

	if c.apiKey == "" {
		return Summary{}, ErrNoAPIKey
	}

	summary, err := c.fetchLocked(ctx, steamID)
	if err != nil {
		return Summary{}, err
	}

	c.cache[steamID] = summary
	c.saveCacheLocked()
	return summary, nil
}

func (c *Client) fetchLocked(ctx context.Context, steamID string) (Summary, error) {
	summary := Summary{SteamID: steamID, FetchedAt: c.now()}

	bans := struct {
		Players []struct {
			VACBanned    bool `json:"VACBanned"`
			CommunityBan bool `json:"CommunityBanned"`
		} `json:"players"`
	}{}
	if err := c.call(ctx, "/ISteamUser/GetPlayerBans/v1/", url.Values{
		"steamids": {steamID},
	}, &bans); err != nil {
		return Summary{}, fmt.Errorf("fetch ban status: %w", err)
	}
	if len(bans.Players) > 0 {
		summary.VACBanned = bans.Players[0].VACBanned
		summary.CommunityBan = bans.Players[0].CommunityBan
	}

	games := struct {
		Response struct {
			GameCount int `json:"game_count"`
		} `json:"response"`
	}{}
	if err := c.call(ctx, "/IPlayerService/GetOwnedGames/v1/", url.Values{
		"steamid":                   {steamID},
		"include_played_free_games": {"1"},
	}, &games); err != nil {
		return Summary{}, fmt.Errorf("fetch owned games: %w", err)
	}
	summary.GameCount = games.Response.GameCount

	return summary, nil
}

// call performs one throttled GET against the Web API and decodes the
// JSON body into out.
func (c *Client) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	if wait := requestGap - c.now().Sub(c.lastCall); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastCall = c.now()

	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) loadCacheLocked() {
	c.cache = make(map[string]Summary)

	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return // No cache yet.
	}
	// A corrupt cache is discarded, not fatal.
	_ = json.Unmarshal(data, &c.cache)
}

func (c *Client) saveCacheLocked() {
	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return
	}
	_ = os.WriteFile(c.cachePath, data, 0644)
}
