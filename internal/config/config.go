// Package config materializes all environment-derived settings into a single
// struct built once at startup. Components never read os.Getenv themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const maxVisionBatchSize = 16

// Config holds every runtime setting for a run.
type Config struct {
	// Blob storage
	Bucket      string
	InputPrefix string

	// Discogs
	DiscogsUser     string
	DiscogsToken    string
	IntakeFolderID  int // folder new releases land in (1 = Uncategorized)
	MediaCondition  string
	SleeveCondition string
	FormatFilter    string
	CountryPref     string
	SearchPageSize  int

	// Discogs client identity for the User-Agent header
	AppName    string
	AppVersion string
	Contact    string
	AppURL     string

	// Label service
	VisionBatchSize int

	// Spotify
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string
	SpotifyRefreshToken string
	SpotifyPlaylistURL  string

	// Playlist building
	PlaylistSourceFolder string

	// Local files
	ReportPath          string
	UnmatchedAlbumsPath string
	UnmatchedTracksPath string
	LabelCachePath      string
}

// DefaultInputPrefix is the conventional root for cover photos in the bucket.
const DefaultInputPrefix = "covers/"

// Load reads configuration from the environment. Call after godotenv has
// loaded any .env files. Missing required variables are reported together.
func Load() (*Config, error) {
	cfg := &Config{
		Bucket:               getenv("VINYL_GCS_BUCKET", ""),
		InputPrefix:          getenv("VINYL_INPUT_PREFIX", DefaultInputPrefix),
		DiscogsUser:          getenv("DISCOGS_USER", ""),
		DiscogsToken:         getenv("DISCOGS_TOKEN", ""),
		IntakeFolderID:       getenvInt("DISCOGS_FOLDER_ID", 1),
		MediaCondition:       getenv("DISCOGS_MEDIA_CONDITION", "Very Good (VG)"),
		SleeveCondition:      getenv("DISCOGS_SLEEVE_CONDITION", "Good Plus (G+)"),
		FormatFilter:         getenv("FORMAT_FILTER", "Vinyl"),
		CountryPref:          getenv("COUNTRY_PREF", "US"),
		SearchPageSize:       getenvInt("SEARCH_PAGE_SIZE", 10),
		AppName:              getenv("DISCOGS_APP_NAME", "vinyl-list"),
		AppVersion:           getenv("DISCOGS_APP_VERSION", "1.0"),
		Contact:              getenv("DISCOGS_CONTACT", ""),
		AppURL:               getenv("DISCOGS_APP_URL", ""),
		VisionBatchSize:      getenvInt("VISION_SYNC_CHUNK", 8),
		SpotifyClientID:      getenv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret:  getenv("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRedirectURI:   getenv("SPOTIFY_REDIRECT_URI", ""),
		SpotifyRefreshToken:  getenv("SPOTIFY_REFRESH_TOKEN", ""),
		SpotifyPlaylistURL:   getenv("SPOTIFY_PLAYLIST_URL", ""),
		PlaylistSourceFolder: getenv("DISCOGS_PLAYLIST_SOURCE_FOLDER", ""),
		ReportPath:           getenv("VINYL_REPORT_PATH", "records.csv"),
		UnmatchedAlbumsPath:  getenv("VINYL_UNMATCHED_ALBUMS_PATH", "unmatched_albums.csv"),
		UnmatchedTracksPath:  getenv("VINYL_UNMATCHED_TRACKS_PATH", "unmatched_tracks.csv"),
		LabelCachePath:       getenv("VINYL_LABEL_CACHE_PATH", "label_results.yaml"),
	}

	if cfg.VisionBatchSize < 1 || cfg.VisionBatchSize > maxVisionBatchSize {
		cfg.VisionBatchSize = maxVisionBatchSize
	}

	var missing []string
	if cfg.Bucket == "" {
		missing = append(missing, "VINYL_GCS_BUCKET")
	}
	if cfg.DiscogsUser == "" {
		missing = append(missing, "DISCOGS_USER")
	}
	if cfg.DiscogsToken == "" {
		missing = append(missing, "DISCOGS_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s (set them in your shell or in .env/.env.local)",
			strings.Join(missing, ", "))
	}

	if !strings.HasSuffix(cfg.InputPrefix, "/") {
		cfg.InputPrefix += "/"
	}

	return cfg, nil
}

// HasSpotify reports whether the Spotify credentials needed for playlist
// building are all present.
func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != "" && c.SpotifyRedirectURI != ""
}

// UserAgent builds the Discogs User-Agent string from the configured
// application identity. Discogs rejects requests without one.
func (c *Config) UserAgent() string {
	name := c.AppName
	if name == "" {
		name = "vinyl-list"
	}
	ua := name
	if c.AppVersion != "" {
		ua = name + "/" + c.AppVersion
	}

	var extras []string
	if c.AppURL != "" {
		extras = append(extras, "+"+c.AppURL)
	}
	if c.Contact != "" {
		extras = append(extras, "contact: "+c.Contact)
	}
	if len(extras) > 0 {
		ua = fmt.Sprintf("%s (%s)", ua, strings.Join(extras, "; "))
	}
	return ua
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
