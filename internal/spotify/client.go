// Package spotify is a minimal Spotify Web API client plus the album/track
// matching heuristics the playlist builder runs against search results.
package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/Slavster/vinyl-list/internal/httpx"
)

const (
	apiBase = "https://api.spotify.com/v1"

	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"

	searchLimit      = 10
	albumTracksPage  = 50
	playlistPage     = 100
	addTracksPerCall = 100
	playlistAddPace  = 300 * time.Millisecond
)

// Config carries the OAuth credentials. RefreshToken comes from a one-time
// authorization-code exchange done outside this program.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
}

// Album is one album search hit.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	Artists     []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// Track is one track, from search or an album listing.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Client talks to the Spotify Web API with a refresh-token OAuth transport.
type Client struct {
	http    *httpx.Client
	baseURL string
	logger  *slog.Logger
	pace    func(time.Duration)
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

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
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

// NewClient builds a client whose transport refreshes access tokens from the
// configured refresh token.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	authed := oauth2.NewClient(ctx, source)
	authed.Timeout = 20 * time.Second

	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		http:    httpx.NewClient(httpx.WithHTTPClient(authed), httpx.WithLogger(logger)),
		baseURL: apiBase,
		logger:  logger,
		pace:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUserID returns the authenticated user's id.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/me", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("fetch current user: %w", err)
	}
	return resp.ID, nil
}

// SearchAlbums searches for albums by title and artist.
func (c *Client) SearchAlbums(ctx context.Context, artist, album string) ([]Album, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("album:%s artist:%s", album, artist))
	params.Set("type", "album")
	params.Set("limit", strconv.Itoa(searchLimit))

	var resp struct {
		Albums struct {
			Items []Album `json:"items"`
		} `json:"albums"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/search", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	return resp.Albums.Items, nil
}

// SearchTrack finds one track, first constrained to the album, then without
// it when the constrained query comes back empty.
func (c *Client) SearchTrack(ctx context.Context, track, artist, album string) (*Track, error) {
	queries := []string{
		fmt.Sprintf("track:%s artist:%s album:%s", track, artist, album),
	}
	if album != "" {
		queries = append(queries, fmt.Sprintf("track:%s artist:%s", track, artist))
	}
	for _, q := range queries {
		params := url.Values{}
		params.Set("q", q)
		params.Set("type", "track")
		params.Set("limit", "1")

		var resp struct {
			Tracks struct {
				Items []Track `json:"items"`
			} `json:"tracks"`
		}
		if err := c.http.GetJSON(ctx, c.baseURL+"/search", params, nil, &resp); err != nil {
			return nil, fmt.Errorf("search track: %w", err)
		}
		if len(resp.Tracks.Items) > 0 {
			return &resp.Tracks.Items[0], nil
		}
	}
	return nil, nil
}

// AlbumTracks lists every track on an album.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]Track, error) {
	var tracks []Track
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(albumTracksPage))
		params.Set("offset", strconv.Itoa(offset))

		var resp struct {
			Items []Track `json:"items"`
			Next  string  `json:"next"`
		}
		if err := c.http.GetJSON(ctx, c.baseURL+"/albums/"+albumID+"/tracks", params, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch album %s tracks: %w", albumID, err)
		}
		tracks = append(tracks, resp.Items...)
		if resp.Next == "" {
			return tracks, nil
		}
		offset += albumTracksPage
	}
}

// PlaylistTrackURIs returns the set of track URIs already in a playlist.
func (c *Client) PlaylistTrackURIs(ctx context.Context, playlistID string) (map[string]bool, error) {
	uris := make(map[string]bool)
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(playlistPage))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("fields", "items(track(uri)),next")

		var resp struct {
			Items []struct {
				Track struct {
					URI string `json:"uri"`
				} `json:"track"`
			} `json:"items"`
			Next string `json:"next"`
		}
		if err := c.http.GetJSON(ctx, c.baseURL+"/playlists/"+playlistID+"/tracks", params, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch playlist %s tracks: %w", playlistID, err)
		}
		for _, item := range resp.Items {
			if item.Track.URI != "" {
				uris[item.Track.URI] = true
			}
		}
		if resp.Next == "" {
			return uris, nil
		}
		offset += playlistPage
	}
}

// CreatePlaylist creates a private playlist for the user and returns its id.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"name":        name,
		"public":      false,
		"description": description,
	}
	err := c.http.PostJSON(ctx, c.baseURL+"/users/"+userID+"/playlists", http.Header{}, payload, &resp)
	if err != nil {
		return "", fmt.Errorf("create playlist %q: %w", name, err)
	}
	return resp.ID, nil
}

// AddToPlaylist appends track URIs in batches, pacing between calls.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	for i := 0; i < len(uris); i += addTracksPerCall {
		end := min(i+addTracksPerCall, len(uris))
		payload := map[string]any{"uris": uris[i:end]}
		err := c.http.PostJSON(ctx, c.baseURL+"/playlists/"+playlistID+"/tracks", http.Header{}, payload, nil)
		if err != nil {
			return fmt.Errorf("add tracks to playlist %s: %w", playlistID, err)
		}
		c.logger.Info("added tracks to playlist", "playlist", playlistID, "count", end-i)
		c.pace(playlistAddPace)
	}
	return nil
}
