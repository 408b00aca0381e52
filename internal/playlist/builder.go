// Package playlist builds Spotify playlists from the reconciled Discogs
// collection: album-level matching first, per-track search as a fallback,
// with unmatched items collected for the CSV reports.
package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/report"
	"github.com/Slavster/vinyl-list/internal/spotify"
)

// Folder ids 0 ("All") and 1 ("Uncategorized") are built in; everything at
// or above this id is a user-created folder.
const firstCustomFolderID = 2

// Catalog is the slice of the Discogs client the builder needs.
type Catalog interface {
	Folders(ctx context.Context) (map[string]int, error)
	FolderReleases(ctx context.Context, folderID int) ([]discogs.FolderRelease, error)
	Tracklist(ctx context.Context, releaseID int) ([]discogs.Track, error)
}

// Streaming is the slice of the Spotify client the builder needs.
type Streaming interface {
	CurrentUserID(ctx context.Context) (string, error)
	SearchAlbums(ctx context.Context, artist, album string) ([]spotify.Album, error)
	SearchTrack(ctx context.Context, track, artist, album string) (*spotify.Track, error)
	AlbumTracks(ctx context.Context, albumID string) ([]spotify.Track, error)
	PlaylistTrackURIs(ctx context.Context, playlistID string) (map[string]bool, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (string, error)
	AddToPlaylist(ctx context.Context, playlistID string, uris []string) error
}

// Summary is what one build run accomplished.
type Summary struct {
	Folders         int
	AlbumsMatched   int
	TracksAdded     int
	UnmatchedAlbums []report.UnmatchedAlbum
	UnmatchedTracks []report.UnmatchedTrack
}

// Builder runs the matching for one or more folders.
type Builder struct {
	catalog Catalog
	stream  Streaming
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder constructs a builder.
func NewBuilder(catalog Catalog, stream Streaming, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{catalog: catalog, stream: stream, logger: logger, now: time.Now}
}

// SelectFolders picks which collection folders to build from: the explicitly
// configured folder if named, else the owner folders derived from the image
// run, else every user-created folder.
func (b *Builder) SelectFolders(ctx context.Context, sourceFolder string, owners []string) (map[string]int, error) {
	all, err := b.catalog.Folders(ctx)
	if err != nil {
		return nil, err
	}

	if sourceFolder != "" {
		id, ok := all[sourceFolder]
		if !ok {
			return nil, fmt.Errorf("collection folder %q not found", sourceFolder)
		}
		return map[string]int{sourceFolder: id}, nil
	}

	selected := make(map[string]int)
	if len(owners) > 0 {
		for _, owner := range owners {
			if id, ok := all[owner]; ok {
				selected[owner] = id
			} else {
				b.logger.Warn("owner has no collection folder", "owner", owner)
			}
		}
		return selected, nil
	}

	for name, id := range all {
		if id >= firstCustomFolderID {
			selected[name] = id
		}
	}
	return selected, nil
}

// BuildInto matches every selected folder's albums into one existing
// playlist, skipping tracks the playlist already has.
func (b *Builder) BuildInto(ctx context.Context, playlistRef string, folders map[string]int) (Summary, error) {
	playlistID, ok := spotify.ExtractPlaylistID(playlistRef)
	if !ok {
		return Summary{}, fmt.Errorf("unrecognized playlist reference %q", playlistRef)
	}
	existing, err := b.stream.PlaylistTrackURIs(ctx, playlistID)
	if err != nil {
		return Summary{}, fmt.Errorf("read playlist %s: %w", playlistID, err)
	}

	summary := Summary{}
	for _, name := range sortedNames(folders) {
		if err := b.buildFolder(ctx, name, folders[name], playlistID, existing, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// BuildPerFolder creates one dated playlist per folder and fills it.
func (b *Builder) BuildPerFolder(ctx context.Context, folders map[string]int) (Summary, error) {
	userID, err := b.stream.CurrentUserID(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{}
	date := b.now().Format("2006-01-02")
	for _, name := range sortedNames(folders) {
		playlistName := fmt.Sprintf("%s Vinyl %s", name, date)
		playlistID, err := b.stream.CreatePlaylist(ctx, userID, playlistName, "Built from the vinyl collection folder "+name)
		if err != nil {
			return summary, fmt.Errorf("create playlist for folder %q: %w", name, err)
		}
		b.logger.Info("created playlist", "name", playlistName, "id", playlistID)
		if err := b.buildFolder(ctx, name, folders[name], playlistID, map[string]bool{}, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (b *Builder) buildFolder(ctx context.Context, folderName string, folderID int, playlistID string, existing map[string]bool, summary *Summary) error {
	releases, err := b.catalog.FolderReleases(ctx, folderID)
	if err != nil {
		return fmt.Errorf("list folder %q: %w", folderName, err)
	}
	summary.Folders++

	var uris []string
	seen := make(map[string]bool)
	for _, release := range releases {
		key := strings.ToLower(spotify.CleanArtistName(release.Artist)) + "\x00" + strings.ToLower(release.Title)
		if seen[key] {
			continue
		}
		seen[key] = true

		trackURIs := b.matchAlbum(ctx, folderName, release, summary)
		for _, uri := range trackURIs {
			if existing[uri] {
				continue
			}
			existing[uri] = true
			uris = append(uris, uri)
		}
	}

	if len(uris) == 0 {
		b.logger.Info("nothing new to add", "folder", folderName)
		return nil
	}
	if err := b.stream.AddToPlaylist(ctx, playlistID, uris); err != nil {
		return fmt.Errorf("add folder %q tracks: %w", folderName, err)
	}
	summary.TracksAdded += len(uris)
	b.logger.Info("added folder tracks", "folder", folderName, "tracks", len(uris))
	return nil
}

// matchAlbum returns the track URIs for one catalog release: the whole album
// when an album-level match lands, else whatever individual tracks the
// per-track fallback can find.
func (b *Builder) matchAlbum(ctx context.Context, folderName string, release discogs.FolderRelease, summary *Summary) []string {
	artist := spotify.CleanArtistName(release.Artist)

	hits, err := b.stream.SearchAlbums(ctx, artist, release.Title)
	if err != nil {
		b.logger.Warn("album search failed", "artist", artist, "album", release.Title, "err", err)
	}
	if match := spotify.MatchAlbum(hits, artist, release.Title, release.Year); match != nil {
		tracks, err := b.stream.AlbumTracks(ctx, match.ID)
		if err != nil {
			b.logger.Warn("album tracks fetch failed", "album", match.Name, "err", err)
		} else {
			summary.AlbumsMatched++
			uris := make([]string, 0, len(tracks))
			for _, t := range tracks {
				uris = append(uris, t.URI)
			}
			return uris
		}
	}

	summary.UnmatchedAlbums = append(summary.UnmatchedAlbums, report.UnmatchedAlbum{
		Folder: folderName,
		Artist: artist,
		Album:  release.Title,
		Reason: "no album match",
	})
	return b.matchTracks(ctx, folderName, release, artist, summary)
}

func (b *Builder) matchTracks(ctx context.Context, folderName string, release discogs.FolderRelease, artist string, summary *Summary) []string {
	tracklist, err := b.catalog.Tracklist(ctx, release.ReleaseID)
	if err != nil {
		b.logger.Warn("tracklist fetch failed", "release", release.ReleaseID, "err", err)
		return nil
	}

	var uris []string
	for _, track := range tracklist {
		if track.Title == "" {
			continue
		}
		hit, err := b.stream.SearchTrack(ctx, track.Title, artist, release.Title)
		if err != nil {
			b.logger.Warn("track search failed", "track", track.Title, "artist", artist, "err", err)
			continue
		}
		if hit == nil {
			summary.UnmatchedTracks = append(summary.UnmatchedTracks, report.UnmatchedTrack{
				Folder: folderName,
				Artist: artist,
				Album:  release.Title,
				Track:  track.Title,
				Reason: "no track match",
			})
			continue
		}
		uris = append(uris, hit.URI)
	}
	return uris
}

func sortedNames(folders map[string]int) []string {
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
