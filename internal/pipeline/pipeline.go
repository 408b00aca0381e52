// Package pipeline wires the run together: list cover photos, label them
// (with the on-disk cache), resolve each to a Discogs release, report, then
// reconcile the remote collection and optionally build playlists.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Slavster/vinyl-list/internal/config"
	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/gcs"
	"github.com/Slavster/vinyl-list/internal/match"
	"github.com/Slavster/vinyl-list/internal/playlist"
	"github.com/Slavster/vinyl-list/internal/report"
	"github.com/Slavster/vinyl-list/internal/vision"
)

const (
	// Test mode caps the run at this many images and performs no writes.
	testModeLimit = 10

	// Pacing between successive mutating collection calls, on top of the
	// per-endpoint pacing inside the Discogs client.
	addPace  = 1100 * time.Millisecond
	movePace = 800 * time.Millisecond
)

// Store lists and reads input images.
type Store interface {
	ListImages(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, object string) ([]byte, error)
	OwnerFolders(ctx context.Context, prefix string) (map[string]bool, error)
}

// Annotator labels images.
type Annotator interface {
	Annotate(ctx context.Context, images []vision.Image) ([]vision.LabelResult, error)
}

// Resolver turns one label result into a resolution.
type Resolver interface {
	Resolve(ctx context.Context, label vision.LabelResult) match.Resolution
}

// Reconciler is the idempotent collection surface.
type Reconciler interface {
	EnsureInCollection(ctx context.Context, releaseID int) (instanceID, folderID int, err error)
	EnsureFiled(ctx context.Context, releaseID int, owner string) error
	EnsureConditionsSet(ctx context.Context, inst discogs.Instance) error
}

// Collection is the read side of the remote collection the pipeline needs.
type Collection interface {
	CollectionReleaseIDs(ctx context.Context) (map[int]bool, error)
	AllInstances(ctx context.Context) ([]discogs.Instance, error)
}

// Builder builds playlists from collection folders.
type Builder interface {
	SelectFolders(ctx context.Context, sourceFolder string, owners []string) (map[string]int, error)
	BuildInto(ctx context.Context, playlistRef string, folders map[string]int) (playlist.Summary, error)
	BuildPerFolder(ctx context.Context, folders map[string]int) (playlist.Summary, error)
}

// Deps carries everything the pipeline runs against. Builder may be nil when
// Spotify credentials are absent.
type Deps struct {
	Store      Store
	Annotator  Annotator
	Cache      *vision.Cache
	Resolver   Resolver
	Reconciler Reconciler
	Collection Collection
	Builder    Builder
	Logger     *slog.Logger
	Out        io.Writer
}

// Pipeline is one configured run.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
	pace func(time.Duration)
}

// New builds a pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	return &Pipeline{cfg: cfg, deps: deps, pace: time.Sleep}
}

// WithPacer overrides pacing sleeps (used in tests).
func (p *Pipeline) WithPacer(pace func(time.Duration)) *Pipeline {
	if pace != nil {
		p.pace = pace
	}
	return p
}

// Run processes the bucket end to end. In test mode only the first few
// images are resolved and nothing is written anywhere, local report aside.
func (p *Pipeline) Run(ctx context.Context, testMode bool) error {
	log := p.deps.Logger

	names, err := p.deps.Store.ListImages(ctx, p.cfg.InputPrefix)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Info("no images found", "bucket", p.cfg.Bucket, "prefix", p.cfg.InputPrefix)
		return nil
	}
	if testMode && len(names) > testModeLimit {
		names = names[:testModeLimit]
		log.Info("test mode, truncating input", "images", len(names))
	}
	log.Info("processing images", "count", len(names))

	labels, err := p.labelImages(ctx, names)
	if err != nil {
		return err
	}

	inCollection, err := p.deps.Collection.CollectionReleaseIDs(ctx)
	if err != nil {
		log.Warn("could not list existing collection, duplicate detection disabled", "err", err)
		inCollection = map[int]bool{}
	}

	rows := make([]report.Row, 0, len(names))
	for i := range names {
		res := p.deps.Resolver.Resolve(ctx, labels[i])
		row := rowFromResolution(labels[i].URI, p.cfg, res)
		row.AlreadyInCollection = res.ReleaseID != 0 && inCollection[res.ReleaseID]
		rows = append(rows, row)
		log.Info("resolved image",
			"file", row.Filename, "status", row.Status,
			"confidence", row.Confidence, "release", row.ReleaseID)
	}

	if err := report.WriteRecords(p.cfg.ReportPath, rows); err != nil {
		return err
	}
	report.RenderSummary(p.deps.Out, rows)
	log.Info("wrote report", "path", p.cfg.ReportPath)

	if testMode {
		log.Info("test mode, skipping collection updates")
		return nil
	}

	p.reconcile(ctx, rows)
	return p.UpdateConditions(ctx)
}

// labelImages returns one label result per input name, in order, reading
// from the cache where possible and annotating the rest in batches.
func (p *Pipeline) labelImages(ctx context.Context, names []string) ([]vision.LabelResult, error) {
	log := p.deps.Logger

	var toAnnotate []vision.Image
	for _, name := range names {
		uri := gcs.URI(p.cfg.Bucket, name)
		if _, ok := p.deps.Cache.Get(uri); ok {
			continue
		}
		data, err := p.deps.Store.Read(ctx, name)
		if err != nil {
			log.Warn("could not read image", "object", name, "err", err)
			p.deps.Cache.Set(vision.LabelResult{URI: uri, Error: err.Error()})
			continue
		}
		toAnnotate = append(toAnnotate, vision.Image{URI: uri, Content: data})
	}

	if len(toAnnotate) > 0 {
		log.Info("annotating new images", "count", len(toAnnotate), "cached", p.deps.Cache.Len())
		results, err := p.deps.Annotator.Annotate(ctx, toAnnotate)
		if err != nil {
			return nil, fmt.Errorf("annotate images: %w", err)
		}
		for _, r := range results {
			p.deps.Cache.Set(r)
		}
		if err := p.deps.Cache.Save(); err != nil {
			log.Warn("could not save label cache", "err", err)
		}
	}

	labels := make([]vision.LabelResult, 0, len(names))
	for _, name := range names {
		uri := gcs.URI(p.cfg.Bucket, name)
		label, ok := p.deps.Cache.Get(uri)
		if !ok {
			label = vision.LabelResult{URI: uri, Error: "no annotation result"}
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// reconcile adds and files each matched, not-yet-present release. Per-unit
// failures are logged and the rest of the batch continues.
func (p *Pipeline) reconcile(ctx context.Context, rows []report.Row) {
	log := p.deps.Logger
	added, filed := 0, 0
	for _, row := range rows {
		if row.Status != match.StatusMatched || row.ReleaseID == 0 {
			continue
		}
		if row.AlreadyInCollection {
			log.Info("already in collection", "release", row.ReleaseID, "file", row.Filename)
		} else {
			if _, _, err := p.deps.Reconciler.EnsureInCollection(ctx, row.ReleaseID); err != nil {
				log.Error("could not add release", "release", row.ReleaseID, "file", row.Filename, "err", err)
				continue
			}
			added++
			p.pace(addPace)
		}
		if row.Owner == "" {
			continue
		}
		if err := p.deps.Reconciler.EnsureFiled(ctx, row.ReleaseID, row.Owner); err != nil {
			log.Error("could not file release", "release", row.ReleaseID, "owner", row.Owner, "err", err)
			continue
		}
		filed++
		p.pace(movePace)
	}
	log.Info("collection reconciled", "added", added, "filed", filed)
}

// UpdateConditions backfills blank condition fields across the whole
// collection.
func (p *Pipeline) UpdateConditions(ctx context.Context) error {
	log := p.deps.Logger
	instances, err := p.deps.Collection.AllInstances(ctx)
	if err != nil {
		return fmt.Errorf("list collection instances: %w", err)
	}
	updated := 0
	for _, inst := range instances {
		if inst.MediaCondition != "" && inst.SleeveCondition != "" {
			continue
		}
		if err := p.deps.Reconciler.EnsureConditionsSet(ctx, inst); err != nil {
			log.Error("could not set conditions", "release", inst.ReleaseID, "instance", inst.InstanceID, "err", err)
			continue
		}
		updated++
	}
	log.Info("conditions backfilled", "instances", len(instances), "updated", updated)
	return nil
}

// OrganizeFolders re-reads a previous run's report and files every matched
// release into its owner folder. Useful after fixing folder names by hand.
func (p *Pipeline) OrganizeFolders(ctx context.Context) error {
	log := p.deps.Logger
	rows, err := report.ReadRecords(p.cfg.ReportPath)
	if err != nil {
		return err
	}
	filed := 0
	for _, row := range rows {
		if row.Status != match.StatusMatched || row.ReleaseID == 0 || row.Owner == "" {
			continue
		}
		if err := p.deps.Reconciler.EnsureFiled(ctx, row.ReleaseID, row.Owner); err != nil {
			log.Error("could not file release", "release", row.ReleaseID, "owner", row.Owner, "err", err)
			continue
		}
		filed++
		p.pace(movePace)
	}
	log.Info("folders organized", "rows", len(rows), "filed", filed)
	return nil
}

// BuildPlaylists matches the selected collection folders against Spotify and
// writes the unmatched reports.
func (p *Pipeline) BuildPlaylists(ctx context.Context) error {
	if p.deps.Builder == nil {
		return fmt.Errorf("Spotify is not configured, set SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REDIRECT_URI")
	}
	log := p.deps.Logger

	var owners []string
	if p.cfg.PlaylistSourceFolder == "" && p.cfg.InputPrefix != config.DefaultInputPrefix {
		ownerSet, err := p.deps.Store.OwnerFolders(ctx, p.cfg.InputPrefix)
		if err != nil {
			log.Warn("could not derive owner folders from bucket", "err", err)
		}
		for owner := range ownerSet {
			owners = append(owners, owner)
		}
	}

	folders, err := p.deps.Builder.SelectFolders(ctx, p.cfg.PlaylistSourceFolder, owners)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		log.Info("no collection folders to build playlists from")
		return nil
	}

	var summary playlist.Summary
	if p.cfg.SpotifyPlaylistURL != "" {
		summary, err = p.deps.Builder.BuildInto(ctx, p.cfg.SpotifyPlaylistURL, folders)
	} else {
		summary, err = p.deps.Builder.BuildPerFolder(ctx, folders)
	}
	if err != nil {
		return err
	}

	if len(summary.UnmatchedAlbums) > 0 {
		if werr := report.WriteUnmatchedAlbums(p.cfg.UnmatchedAlbumsPath, summary.UnmatchedAlbums); werr != nil {
			log.Warn("could not write unmatched albums", "err", werr)
		}
	}
	if len(summary.UnmatchedTracks) > 0 {
		if werr := report.WriteUnmatchedTracks(p.cfg.UnmatchedTracksPath, summary.UnmatchedTracks); werr != nil {
			log.Warn("could not write unmatched tracks", "err", werr)
		}
	}
	log.Info("playlists built",
		"folders", summary.Folders,
		"albums_matched", summary.AlbumsMatched,
		"tracks_added", summary.TracksAdded,
		"unmatched_albums", len(summary.UnmatchedAlbums),
		"unmatched_tracks", len(summary.UnmatchedTracks))
	return nil
}

func rowFromResolution(uri string, cfg *config.Config, res match.Resolution) report.Row {
	row := report.Row{
		Owner:               gcs.OwnerFromURI(uri, cfg.Bucket, cfg.InputPrefix),
		Filename:            gcs.FilenameFromURI(uri),
		URI:                 uri,
		Status:              res.Status,
		Confidence:          res.Confidence,
		Method:              res.Method,
		ReleaseID:           res.ReleaseID,
		URL:                 res.URL,
		CandidateSource:     res.CandidateSource,
		HasServiceCandidate: res.HasServiceCandidate,
		ArtistHint:          res.ArtistHint,
		AlbumHint:           res.AlbumHint,
		BestGuess:           res.BestGuess,
		ErrorMessage:        res.ErrorMessage,
		Reason:              res.Reason,
	}
	candidates := append(append([]string{}, res.ServiceCandidates...), res.OtherCandidates...)
	if len(candidates) > 0 {
		row.Candidate1 = candidates[0]
	}
	if len(candidates) > 1 {
		row.Candidate2 = candidates[1]
	}
	if len(candidates) > 2 {
		row.Candidate3 = candidates[2]
	}
	return row
}
