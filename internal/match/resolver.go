package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/vision"
)

// Resolution statuses. Region preference never downgrades a target-format
// match to review on its own.
const (
	StatusMatched = "matched"
	StatusReview  = "needs_review"
)

// Candidate source labels for the report, keyed on where the image's page
// URLs pointed rather than on which pass eventually matched.
const (
	SourceDiscogs = "discogs"
	SourceOther   = "other"
	SourceNone    = "none"
)

// Catalog is the slice of the Discogs client the resolver needs.
type Catalog interface {
	GetRelease(ctx context.Context, id int) (*discogs.Release, error)
	GetMaster(ctx context.Context, id int) (*discogs.Master, error)
	MasterVersions(ctx context.Context, id, page int) (*discogs.VersionsPage, error)
	SearchReleases(ctx context.Context, artist, title string) ([]discogs.SearchResult, error)
}

// Resolution is the per-image outcome.
type Resolution struct {
	Status              string
	Confidence          string
	Method              string
	ReleaseID           int
	URL                 string
	TargetFormat        bool
	PreferredRegion     bool
	Reason              string
	ArtistHint          string
	AlbumHint           string
	BestGuess           string
	ServiceCandidates   []string
	OtherCandidates     []string
	CandidateSource     string
	HasServiceCandidate bool
	ErrorMessage        string
}

// Resolver runs the fallback chain for one image at a time.
type Resolver struct {
	catalog Catalog
	format  string
	country string
	logger  *slog.Logger
}

// NewResolver builds a resolver for the configured format and region.
func NewResolver(catalog Catalog, format, country string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: catalog, format: format, country: country, logger: logger}
}

// hit is a candidate release carried through the chain. Hits produced by the
// passes always carry a computed validity; a leftover fallback without one is
// validated during finalize.
type hit struct {
	id           int
	url          string
	method       string
	validity     Validity
	haveValidity bool
}

// Resolve runs the chain for one labelled image. Individual catalog fetch
// failures degrade to "no data" and the chain moves on; only the label
// service's own error short-circuits straight to review.
func (r *Resolver) Resolve(ctx context.Context, label vision.LabelResult) Resolution {
	res := Resolution{
		Status:     StatusReview,
		Confidence: ConfidenceUnknown,
		Method:     MethodNone,
		BestGuess:  label.BestGuess,
	}
	res.ArtistHint, res.AlbumHint = deriveHints(label)

	audit := Extract(label, AuditLimit)
	res.ServiceCandidates = audit.Service
	res.OtherCandidates = audit.Other

	cands := Extract(label, ResolveLimit)
	res.HasServiceCandidate = len(cands.Service) > 0
	switch {
	case res.HasServiceCandidate:
		res.CandidateSource = SourceDiscogs
	case len(res.OtherCandidates) > 0:
		res.CandidateSource = SourceOther
	default:
		res.CandidateSource = SourceNone
	}

	if label.Error != "" {
		res.ErrorMessage = label.Error
		res.Reason = "labelling failed: " + label.Error
		return r.finalize(ctx, res, nil)
	}

	var releaseRefs, masterRefs []Ref
	for _, u := range cands.Service {
		if ref, ok := ClassifyURL(u); ok {
			switch ref.Kind {
			case RefRelease:
				releaseRefs = append(releaseRefs, ref)
			case RefMaster:
				masterRefs = append(masterRefs, ref)
			}
		}
	}

	// Release pass: first format+region hit wins outright; the first
	// format-only hit is remembered and never overwritten by later ones.
	var fallback *hit
	for _, ref := range releaseRefs {
		release, err := r.catalog.GetRelease(ctx, ref.ID)
		if err != nil {
			r.logger.Warn("release candidate lookup failed", "release", ref.ID, "err", err)
			continue
		}
		v := Validate(release, r.format, r.country)
		if v.TargetFormat && v.PreferredRegion {
			return r.finalize(ctx, res, &hit{id: ref.ID, url: releaseURL(release, ref), method: MethodRelease, validity: v, haveValidity: true})
		}
		if v.TargetFormat && fallback == nil {
			fallback = &hit{id: ref.ID, url: releaseURL(release, ref), method: MethodRelease, validity: v, haveValidity: true}
		}
	}

	// Master pass: a full match overrides any weaker fallback from the
	// release pass; a format-only result is kept only when nothing weaker
	// is held yet.
	for _, ref := range masterRefs {
		full, partial, err := r.resolveMaster(ctx, ref.ID)
		if err != nil {
			r.logger.Warn("master candidate lookup failed", "master", ref.ID, "err", err)
			continue
		}
		if full != nil {
			return r.finalize(ctx, res, full)
		}
		if partial != nil && fallback == nil {
			fallback = partial
		}
	}

	// Text-search pass: only when the URL passes found no release at all.
	if fallback == nil && (res.ArtistHint != "" || res.AlbumHint != "") {
		results, err := r.catalog.SearchReleases(ctx, res.ArtistHint, res.AlbumHint)
		if err != nil {
			r.logger.Warn("text search failed", "artist", res.ArtistHint, "album", res.AlbumHint, "err", err)
		}
		for _, sr := range results {
			release, err := r.catalog.GetRelease(ctx, sr.ID)
			if err != nil {
				r.logger.Warn("search hit lookup failed", "release", sr.ID, "err", err)
				continue
			}
			v := Validate(release, r.format, r.country)
			h := &hit{id: sr.ID, url: releaseURL(release, Ref{}), method: MethodSearch, validity: v, haveValidity: true}
			if v.TargetFormat && v.PreferredRegion {
				return r.finalize(ctx, res, h)
			}
			if v.TargetFormat && fallback == nil {
				fallback = h
			}
		}
	}

	return r.finalize(ctx, res, fallback)
}

// resolveMaster walks one master: its main release first as a standing
// candidate, then every versions page. Returns a full match, or the first
// format-only version as a partial, or neither.
func (r *Resolver) resolveMaster(ctx context.Context, masterID int) (full, partial *hit, err error) {
	master, err := r.catalog.GetMaster(ctx, masterID)
	if err != nil {
		return nil, nil, err
	}

	check := func(releaseID int) *hit {
		release, err := r.catalog.GetRelease(ctx, releaseID)
		if err != nil {
			r.logger.Warn("master version lookup failed", "master", masterID, "release", releaseID, "err", err)
			return nil
		}
		v := Validate(release, r.format, r.country)
		if !v.TargetFormat {
			return nil
		}
		return &hit{id: releaseID, url: releaseURL(release, Ref{}), method: MethodMaster, validity: v, haveValidity: true}
	}

	if master.MainRelease != 0 {
		if h := check(master.MainRelease); h != nil {
			if h.validity.PreferredRegion {
				return h, nil, nil
			}
			partial = h
		}
	}

	page := 1
	for {
		versions, err := r.catalog.MasterVersions(ctx, masterID, page)
		if err != nil {
			r.logger.Warn("master versions page failed", "master", masterID, "page", page, "err", err)
			return nil, partial, nil
		}
		for _, version := range versions.Versions {
			if version.ID == master.MainRelease {
				continue
			}
			h := check(version.ID)
			if h == nil {
				continue
			}
			if h.validity.PreferredRegion {
				return h, partial, nil
			}
			if partial == nil {
				partial = h
			}
		}
		if versions.Pagination.Page >= versions.Pagination.Pages {
			return nil, partial, nil
		}
		page = versions.Pagination.Page + 1
	}
}

// finalize turns the winning (or absent) hit into the resolution record and
// applies the confidence rules.
func (r *Resolver) finalize(ctx context.Context, res Resolution, winner *hit) Resolution {
	if winner != nil {
		if !winner.haveValidity {
			release, err := r.catalog.GetRelease(ctx, winner.id)
			if err == nil {
				winner.validity = Validate(release, r.format, r.country)
				winner.haveValidity = true
			} else {
				winner.validity = Validity{Reason: fmt.Sprintf("validation fetch failed: %v", err)}
			}
		}
		res.ReleaseID = winner.id
		res.URL = winner.url
		res.Method = winner.method
		res.TargetFormat = winner.validity.TargetFormat
		res.PreferredRegion = winner.validity.PreferredRegion
		res.Reason = winner.validity.Reason
		if res.TargetFormat {
			res.Status = StatusMatched
		}
	} else if res.Reason == "" {
		res.Reason = "no catalog match found"
	}

	res.Confidence = Confidence(res.Method, res.HasServiceCandidate, res.TargetFormat, res.PreferredRegion)
	if res.Status == StatusReview && !res.HasServiceCandidate && len(res.OtherCandidates) > 0 {
		res.Confidence = ConfidenceVeryLow
	}
	return res
}

// deriveHints takes the first two non-empty OCR lines as an artist/album
// pair. A single line is too little to hint from and is ignored; the
// best-guess label split on " - " is the fallback either way.
func deriveHints(label vision.LabelResult) (artist, album string) {
	var lines []string
	for _, line := range strings.Split(label.OCRText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) >= 2 {
		artist, album = lines[0], lines[1]
	}
	if album == "" && strings.Contains(label.BestGuess, " - ") {
		parts := strings.SplitN(label.BestGuess, " - ", 2)
		artist = strings.TrimSpace(parts[0])
		album = strings.TrimSpace(parts[1])
	}
	return artist, album
}

func releaseURL(release *discogs.Release, ref Ref) string {
	if release != nil && release.URI != "" {
		return release.URI
	}
	if ref.URL != "" {
		return ref.URL
	}
	if release != nil {
		return fmt.Sprintf("https://www.discogs.com/release/%d", release.ID)
	}
	return ""
}
