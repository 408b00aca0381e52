package match

import (
	"context"
	"fmt"
	"testing"

	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/vision"
)

type fakeCatalog struct {
	releases map[int]*discogs.Release
	masters  map[int]*discogs.Master
	versions map[int][]discogs.MasterVersion
	search   []discogs.SearchResult

	releaseCalls []int
	searchCalls  int
}

func (f *fakeCatalog) GetRelease(_ context.Context, id int) (*discogs.Release, error) {
	f.releaseCalls = append(f.releaseCalls, id)
	r, ok := f.releases[id]
	if !ok {
		return nil, fmt.Errorf("release %d not found", id)
	}
	return r, nil
}

func (f *fakeCatalog) GetMaster(_ context.Context, id int) (*discogs.Master, error) {
	m, ok := f.masters[id]
	if !ok {
		return nil, fmt.Errorf("master %d not found", id)
	}
	return m, nil
}

func (f *fakeCatalog) MasterVersions(_ context.Context, id, page int) (*discogs.VersionsPage, error) {
	return &discogs.VersionsPage{
		Versions:   f.versions[id],
		Pagination: discogs.Pagination{Page: page, Pages: 1},
	}, nil
}

func (f *fakeCatalog) SearchReleases(context.Context, string, string) ([]discogs.SearchResult, error) {
	f.searchCalls++
	return f.search, nil
}

func vinylRelease(id int, country string) *discogs.Release {
	return &discogs.Release{
		ID:      id,
		Country: country,
		Formats: []discogs.Format{{Name: "Vinyl"}},
	}
}

func newTestResolver(catalog *fakeCatalog) *Resolver {
	return NewResolver(catalog, "Vinyl", "US", nil)
}

func TestResolvePrefersRegionOverEarlierFallback(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{
			100: vinylRelease(100, "Germany"),
			200: vinylRelease(200, "US"),
		},
	}
	label := vision.LabelResult{
		PageURLs: []string{
			"https://www.discogs.com/release/100",
			"https://www.discogs.com/release/200",
		},
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.ReleaseID != 200 {
		t.Fatalf("release = %d, want 200", res.ReleaseID)
	}
	if res.Method != MethodRelease {
		t.Errorf("method = %s, want %s", res.Method, MethodRelease)
	}
	if res.Status != StatusMatched {
		t.Errorf("status = %s, want %s", res.Status, StatusMatched)
	}
	if res.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceHigh)
	}
	if catalog.searchCalls != 0 {
		t.Errorf("search calls = %d, want 0", catalog.searchCalls)
	}
}

func TestResolveFirstFallbackNotOverwritten(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{
			100: vinylRelease(100, "Germany"),
			200: vinylRelease(200, "Japan"),
		},
	}
	label := vision.LabelResult{
		PageURLs: []string{
			"https://www.discogs.com/release/100",
			"https://www.discogs.com/release/200",
		},
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.ReleaseID != 100 {
		t.Fatalf("release = %d, want first fallback 100", res.ReleaseID)
	}
	if res.Status != StatusMatched {
		t.Errorf("status = %s, want %s (region never downgrades)", res.Status, StatusMatched)
	}
	// A direct release match outside the preferred region carries no
	// confidence at all, even though it still counts as matched.
	if res.Confidence != ConfidenceUnknown {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceUnknown)
	}
}

func TestResolveMasterFullMatchOverridesReleaseFallback(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{
			100: vinylRelease(100, "Germany"),
			500: vinylRelease(500, "UK"),
			501: vinylRelease(501, "US"),
		},
		masters:  map[int]*discogs.Master{70: {ID: 70, MainRelease: 500}},
		versions: map[int][]discogs.MasterVersion{70: {{ID: 501}}},
	}
	label := vision.LabelResult{
		PageURLs: []string{
			"https://www.discogs.com/release/100",
			"https://www.discogs.com/master/70",
		},
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.ReleaseID != 501 {
		t.Fatalf("release = %d, want master version 501", res.ReleaseID)
	}
	if res.Method != MethodMaster {
		t.Errorf("method = %s, want %s", res.Method, MethodMaster)
	}
	if res.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceMedium)
	}
}

func TestResolveSearchFallbackForcesVeryLow(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{900: vinylRelease(900, "US")},
		search:   []discogs.SearchResult{{ID: 900, Title: "Album Y"}},
	}
	label := vision.LabelResult{
		OCRText: "Artist X\nAlbum Y\n",
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.ReleaseID != 900 {
		t.Fatalf("release = %d, want 900", res.ReleaseID)
	}
	if res.Method != MethodSearch {
		t.Errorf("method = %s, want %s", res.Method, MethodSearch)
	}
	if res.Status != StatusMatched {
		t.Errorf("status = %s, want %s", res.Status, StatusMatched)
	}
	// Full match via search with zero service candidates stays very_low.
	if res.Confidence != ConfidenceVeryLow {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceVeryLow)
	}
	if res.ArtistHint != "Artist X" || res.AlbumHint != "Album Y" {
		t.Errorf("hints = (%q, %q), want (Artist X, Album Y)", res.ArtistHint, res.AlbumHint)
	}
	if res.CandidateSource != SourceNone {
		t.Errorf("candidate source = %s, want %s without page URLs", res.CandidateSource, SourceNone)
	}
}

func TestResolveSearchRequiresTwoOCRLines(t *testing.T) {
	catalog := &fakeCatalog{
		search: []discogs.SearchResult{{ID: 900}},
	}
	label := vision.LabelResult{OCRText: "NIRVANA\n"}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if catalog.searchCalls != 0 {
		t.Errorf("search calls = %d, want 0 for a single OCR line", catalog.searchCalls)
	}
	if res.ArtistHint != "" || res.AlbumHint != "" {
		t.Errorf("hints = (%q, %q), want none", res.ArtistHint, res.AlbumHint)
	}
	if res.Status != StatusReview {
		t.Errorf("status = %s, want %s", res.Status, StatusReview)
	}
}

func TestResolveSearchSkippedWhenFallbackExists(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{100: vinylRelease(100, "Germany")},
		search:   []discogs.SearchResult{{ID: 900}},
	}
	label := vision.LabelResult{
		PageURLs: []string{"https://www.discogs.com/release/100"},
		OCRText:  "Artist X\nAlbum Y\n",
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if catalog.searchCalls != 0 {
		t.Errorf("search calls = %d, want 0 when a fallback release exists", catalog.searchCalls)
	}
	if res.ReleaseID != 100 {
		t.Errorf("release = %d, want 100", res.ReleaseID)
	}
}

func TestResolveLabelErrorShortCircuits(t *testing.T) {
	catalog := &fakeCatalog{}
	label := vision.LabelResult{Error: "quota exceeded"}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.Status != StatusReview {
		t.Errorf("status = %s, want %s", res.Status, StatusReview)
	}
	if res.Confidence != ConfidenceUnknown {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceUnknown)
	}
	if res.ErrorMessage != "quota exceeded" {
		t.Errorf("error = %q, want retained message", res.ErrorMessage)
	}
	if len(catalog.releaseCalls) != 0 {
		t.Errorf("release calls = %v, want none", catalog.releaseCalls)
	}
}

func TestResolveFetchFailureDegradesToNextCandidate(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{200: vinylRelease(200, "US")},
	}
	label := vision.LabelResult{
		PageURLs: []string{
			"https://www.discogs.com/release/100",
			"https://www.discogs.com/release/200",
		},
	}

	res := newTestResolver(catalog).Resolve(context.Background(), label)

	if res.ReleaseID != 200 {
		t.Fatalf("release = %d, want 200 after first lookup failed", res.ReleaseID)
	}
	if res.Status != StatusMatched {
		t.Errorf("status = %s, want %s", res.Status, StatusMatched)
	}
}

func TestResolveNoCandidatesAtAll(t *testing.T) {
	res := newTestResolver(&fakeCatalog{}).Resolve(context.Background(), vision.LabelResult{})

	if res.ReleaseID != 0 {
		t.Errorf("release = %d, want 0", res.ReleaseID)
	}
	if res.Method != MethodNone {
		t.Errorf("method = %s, want %s", res.Method, MethodNone)
	}
	if res.Confidence != ConfidenceUnknown {
		t.Errorf("confidence = %s, want %s", res.Confidence, ConfidenceUnknown)
	}
}

func TestResolveOnlyOtherCandidatesForcesVeryLow(t *testing.T) {
	res := newTestResolver(&fakeCatalog{}).Resolve(context.Background(), vision.LabelResult{
		PageURLs: []string{"https://example.com/somewhere"},
	})

	if res.Status != StatusReview {
		t.Errorf("status = %s, want %s", res.Status, StatusReview)
	}
	if res.Confidence != ConfidenceVeryLow {
		t.Errorf("confidence = %s, want %s for non-service candidates", res.Confidence, ConfidenceVeryLow)
	}
	if res.CandidateSource != SourceOther {
		t.Errorf("candidate source = %s, want %s", res.CandidateSource, SourceOther)
	}
}

func TestResolveCandidateSourceDiscogs(t *testing.T) {
	catalog := &fakeCatalog{
		releases: map[int]*discogs.Release{100: vinylRelease(100, "US")},
	}
	res := newTestResolver(catalog).Resolve(context.Background(), vision.LabelResult{
		PageURLs: []string{
			"https://www.discogs.com/release/100",
			"https://example.com/somewhere",
		},
	})

	if res.CandidateSource != SourceDiscogs {
		t.Errorf("candidate source = %s, want %s", res.CandidateSource, SourceDiscogs)
	}
}

func TestDeriveHintsBestGuessSplit(t *testing.T) {
	artist, album := deriveHints(vision.LabelResult{BestGuess: "Artist X - Album Y"})
	if artist != "Artist X" || album != "Album Y" {
		t.Errorf("hints = (%q, %q), want split best guess", artist, album)
	}
}
