package vision

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	logger := slog.Default()

	c := LoadCache(path, logger)
	if c.Len() != 0 {
		t.Fatalf("fresh cache has %d entries", c.Len())
	}
	c.Set(LabelResult{
		URI:       "gs://b/covers/Dad/IMG_001.jpg",
		PageURLs:  []string{"https://www.discogs.com/release/1"},
		BestGuess: "nevermind nirvana",
		OCRText:   "NIRVANA\nNEVERMIND",
	})
	c.Set(LabelResult{URI: "gs://b/covers/Dad/IMG_002.jpg", Error: "quota exceeded"})
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := LoadCache(path, logger)
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d entries, want 2", loaded.Len())
	}
	got, ok := loaded.Get("gs://b/covers/Dad/IMG_001.jpg")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if got.BestGuess != "nevermind nirvana" || len(got.PageURLs) != 1 {
		t.Errorf("entry = %+v", got)
	}
	if got, _ := loaded.Get("gs://b/covers/Dad/IMG_002.jpg"); got.Error != "quota exceeded" {
		t.Errorf("error entry = %+v", got)
	}
}

func TestCacheIgnoresEmptyURI(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "labels.yaml"), slog.Default())
	c.Set(LabelResult{BestGuess: "no uri"})
	if c.Len() != 0 {
		t.Errorf("entries = %d, want 0", c.Len())
	}
}

func TestCacheCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	c := LoadCache(path, slog.Default())
	if c.Len() != 0 {
		t.Errorf("entries = %d, want 0 after corrupt load", c.Len())
	}
	c.Set(LabelResult{URI: "gs://b/x.jpg"})
	if err := c.Save(); err != nil {
		t.Fatalf("save over corrupt file: %v", err)
	}
}
