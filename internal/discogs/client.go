// Package discogs is a typed client for the Discogs API: release and master
// lookups, database search, and the collection endpoints used for filing and
// condition backfill. All calls go through the retrying httpx client and
// pace themselves to stay inside Discogs rate limits.
package discogs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Slavster/vinyl-list/internal/httpx"
	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	perPage        = 100

	// Fixed pacing between successive calls; 429 backoff on top of this is
	// handled by httpx.
	releasePace = 600 * time.Millisecond
	pagePace    = 500 * time.Millisecond
)

// Release is a concrete pressing in the Discogs catalog.
type Release struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Country   string   `json:"country"`
	Year      int      `json:"year"`
	URI       string   `json:"uri"`
	Formats   []Format `json:"formats"`
	Artists   []Artist `json:"artists"`
	Tracklist []Track  `json:"tracklist"`
}

// Format is one physical format entry on a release.
type Format struct {
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
}

// Artist is a credited artist on a release.
type Artist struct {
	Name string `json:"name"`
}

// Track is one tracklist entry.
type Track struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// Master groups the pressings of one creative work.
type Master struct {
	ID          int    `json:"id"`
	MainRelease int    `json:"main_release"`
	VersionsURL string `json:"versions_url"`
}

// VersionsPage is one page of a master's version listing.
type VersionsPage struct {
	Versions   []MasterVersion `json:"versions"`
	Pagination Pagination      `json:"pagination"`
}

// MasterVersion is one pressing reference inside a master.
type MasterVersion struct {
	ID int `json:"id"`
}

// Pagination is the page/pages envelope Discogs puts on every listing.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// SearchResult is one database search hit.
type SearchResult struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Config carries the settings the client needs.
type Config struct {
	User           string
	Token          string
	UserAgent      string
	FormatFilter   string
	CountryPref    string
	SearchPageSize int
	BaseURL        string
}

// Client talks to the Discogs API for one user.
type Client struct {
	http    *httpx.Client
	cfg     Config
	baseURL string
	logger  *slog.Logger
	pace    func(time.Duration)

	// Run-scoped memoization; folder entries are invalidated when a folder
	// is created underneath them.
	releases *gocache.Cache
	folders  *gocache.Cache
	fields   *gocache.Cache
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the retrying HTTP client (used in tests).
func WithHTTPClient(client *httpx.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithPacer overrides rate-limit pacing sleeps (used in tests).
func WithPacer(pace func(time.Duration)) Option {
	return func(c *Client) {
		if pace != nil {
			c.pace = pace
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Discogs client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		http:     httpx.NewClient(httpx.WithMaxAttempts(6)),
		cfg:      cfg,
		baseURL:  cfg.BaseURL,
		logger:   slog.Default(),
		pace:     time.Sleep,
		releases: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		folders:  gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		fields:   gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.cfg.UserAgent)
	h.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		h.Set("Authorization", "Discogs token="+c.cfg.Token)
	}
	return h
}

// GetRelease fetches a release, memoized for the lifetime of the run.
func (c *Client) GetRelease(ctx context.Context, id int) (*Release, error) {
	key := strconv.Itoa(id)
	if cached, ok := c.releases.Get(key); ok {
		return cached.(*Release), nil
	}
	var release Release
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/releases/%d", c.baseURL, id), nil, c.headers(), &release)
	c.pace(releasePace)
	if err != nil {
		return nil, fmt.Errorf("fetch release %d: %w", id, err)
	}
	c.releases.Set(key, &release, gocache.NoExpiration)
	return &release, nil
}

// GetMaster fetches master metadata.
func (c *Client) GetMaster(ctx context.Context, id int) (*Master, error) {
	var master Master
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/masters/%d", c.baseURL, id), nil, c.headers(), &master)
	if err != nil {
		return nil, fmt.Errorf("fetch master %d: %w", id, err)
	}
	return &master, nil
}

// MasterVersions fetches one page of a master's version list.
func (c *Client) MasterVersions(ctx context.Context, id, page int) (*VersionsPage, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	var versions VersionsPage
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/masters/%d/versions", c.baseURL, id), params, c.headers(), &versions)
	c.pace(pagePace)
	if err != nil {
		return nil, fmt.Errorf("fetch versions for master %d page %d: %w", id, page, err)
	}
	return &versions, nil
}

// SearchReleases runs a database search constrained to the configured format
// and country preference.
func (c *Client) SearchReleases(ctx context.Context, artist, title string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("type", "release")
	params.Set("format", c.cfg.FormatFilter)
	params.Set("country", c.cfg.CountryPref)
	params.Set("per_page", strconv.Itoa(c.cfg.SearchPageSize))
	if artist != "" {
		params.Set("artist", artist)
	}
	if title != "" {
		params.Set("release_title", title)
	}

	var resp struct {
		Results []SearchResult `json:"results"`
	}
	err := c.http.GetJSON(ctx, c.baseURL+"/database/search", params, c.headers(), &resp)
	c.pace(releasePace)
	if err != nil {
		return nil, fmt.Errorf("search releases: %w", err)
	}
	return resp.Results, nil
}

// Tracklist fetches the tracklist of a release.
func (c *Client) Tracklist(ctx context.Context, releaseID int) ([]Track, error) {
	release, err := c.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	return release.Tracklist, nil
}
