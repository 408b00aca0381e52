package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Slavster/vinyl-list/internal/collection"
	"github.com/Slavster/vinyl-list/internal/config"
	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/gcs"
	"github.com/Slavster/vinyl-list/internal/match"
	"github.com/Slavster/vinyl-list/internal/pipeline"
	"github.com/Slavster/vinyl-list/internal/playlist"
	"github.com/Slavster/vinyl-list/internal/spotify"
	"github.com/Slavster/vinyl-list/internal/vision"
)

// app bundles the wired pipeline with the handles that need closing.
type app struct {
	cfg   *config.Config
	pipe  *pipeline.Pipeline
	store *gcs.Store
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// buildApp loads configuration and wires the pipeline. The storage and
// vision clients are only connected when the subcommand needs them, so
// collection-only commands run without Google credentials.
func buildApp(ctx context.Context, needStore, needVision bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	catalog := discogs.NewClient(discogs.Config{
		User:           cfg.DiscogsUser,
		Token:          cfg.DiscogsToken,
		UserAgent:      cfg.UserAgent(),
		FormatFilter:   cfg.FormatFilter,
		CountryPref:    cfg.CountryPref,
		SearchPageSize: cfg.SearchPageSize,
	}, discogs.WithLogger(logger))

	deps := pipeline.Deps{
		Resolver:   match.NewResolver(catalog, cfg.FormatFilter, cfg.CountryPref, logger),
		Reconciler: collection.NewReconciler(catalog, cfg.IntakeFolderID, cfg.MediaCondition, cfg.SleeveCondition, logger),
		Collection: catalog,
		Cache:      vision.LoadCache(cfg.LabelCachePath, logger),
		Logger:     logger,
		Out:        os.Stdout,
	}

	a := &app{cfg: cfg}
	if needStore {
		store, err := gcs.New(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		a.store = store
		deps.Store = store
	}
	if needVision {
		annotator, err := vision.NewClient(ctx, cfg.VisionBatchSize, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to the Vision API: %w", err)
		}
		deps.Annotator = annotator
	}
	if cfg.HasSpotify() {
		stream := spotify.NewClient(ctx, spotify.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURI,
			RefreshToken: cfg.SpotifyRefreshToken,
		}, logger)
		deps.Builder = playlist.NewBuilder(catalog, stream, logger)
	}

	a.pipe = pipeline.New(cfg, deps)
	return a, nil
}
