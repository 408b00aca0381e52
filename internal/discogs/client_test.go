package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Slavster/vinyl-list/internal/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		User:           "collector",
		Token:          "token123",
		UserAgent:      "vinyl-list/1.0",
		FormatFilter:   "Vinyl",
		CountryPref:    "US",
		SearchPageSize: 10,
		BaseURL:        srv.URL,
	}, WithPacer(func(time.Duration) {}))
	return c, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestGetReleaseMemoized(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/releases/123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Discogs token=token123" {
			t.Errorf("auth = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "vinyl-list/1.0" {
			t.Errorf("user-agent = %q", got)
		}
		writeJSON(w, map[string]any{
			"id": 123, "title": "Nevermind", "country": "US", "year": 1991,
			"formats": []map[string]any{{"name": "Vinyl", "descriptions": []string{"LP", "Album"}}},
			"artists": []map[string]any{{"name": "Nirvana"}},
		})
	}))

	ctx := context.Background()
	first, err := c.GetRelease(ctx, 123)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := c.GetRelease(ctx, 123)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (memoized)", calls.Load())
	}
	if first != second {
		t.Error("memoized fetch returned a different pointer")
	}
	if first.Title != "Nevermind" || first.Formats[0].Name != "Vinyl" {
		t.Errorf("release = %+v", first)
	}
}

func TestSearchReleasesParams(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != "release" || q.Get("format") != "Vinyl" || q.Get("country") != "US" {
			t.Errorf("query = %v", q)
		}
		if q.Get("artist") != "Nirvana" || q.Get("release_title") != "Nevermind" {
			t.Errorf("hint params = %v", q)
		}
		if q.Get("per_page") != "10" {
			t.Errorf("per_page = %s", q.Get("per_page"))
		}
		writeJSON(w, map[string]any{"results": []map[string]any{{"id": 123, "title": "Nirvana - Nevermind"}}})
	}))

	results, err := c.SearchReleases(context.Background(), "Nirvana", "Nevermind")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 123 {
		t.Errorf("results = %+v", results)
	}
}

func TestMasterVersionsPaged(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/masters/70/versions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		page := r.URL.Query().Get("page")
		if page == "1" {
			writeJSON(w, map[string]any{
				"versions":   []map[string]any{{"id": 1}, {"id": 2}},
				"pagination": map[string]any{"page": 1, "pages": 2},
			})
			return
		}
		writeJSON(w, map[string]any{
			"versions":   []map[string]any{{"id": 3}},
			"pagination": map[string]any{"page": 2, "pages": 2},
		})
	}))

	page1, err := c.MasterVersions(context.Background(), 70, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Versions) != 2 || page1.Pagination.Pages != 2 {
		t.Errorf("page 1 = %+v", page1)
	}
	page2, err := c.MasterVersions(context.Background(), 70, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Versions) != 1 {
		t.Errorf("page 2 = %+v", page2)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"id": 123, "title": "Nevermind"})
	}))
	t.Cleanup(srv.Close)

	retrying := httpx.NewClient(
		httpx.WithSleeper(func(time.Duration) {}),
		httpx.WithJitter(func() float64 { return 0 }),
	)
	c := NewClient(Config{User: "collector", Token: "t", BaseURL: srv.URL},
		WithHTTPClient(retrying), WithPacer(func(time.Duration) {}))

	release, err := c.GetRelease(context.Background(), 123)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if release.ID != 123 {
		t.Errorf("release = %+v", release)
	}
}

func TestTracklist(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": 123,
			"tracklist": []map[string]any{
				{"position": "A1", "title": "Smells Like Teen Spirit", "duration": "5:01"},
				{"position": "A2", "title": "In Bloom", "duration": "4:14"},
			},
		})
	}))

	tracks, err := c.Tracklist(context.Background(), 123)
	if err != nil {
		t.Fatalf("tracklist: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Title != "Smells Like Teen Spirit" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestGetReleaseError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Release not found."}`)
	}))

	_, err := c.GetRelease(context.Background(), 999)
	if err == nil {
		t.Fatal("expected error")
	}
	if !httpx.IsNotFound(err) {
		t.Errorf("err = %v, want not-found", err)
	}
}
