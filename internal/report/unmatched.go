package report

import (
	"encoding/csv"
	"fmt"
	"os"
)

// UnmatchedAlbum is an album the streaming matcher could not place.
type UnmatchedAlbum struct {
	Folder string
	Artist string
	Album  string
	Reason string
}

// UnmatchedTrack is a single track the streaming matcher could not place.
type UnmatchedTrack struct {
	Folder string
	Artist string
	Album  string
	Track  string
	Reason string
}

// WriteUnmatchedAlbums writes the unmatched-albums report to path.
func WriteUnmatchedAlbums(path string, albums []UnmatchedAlbum) error {
	records := [][]string{{"folder", "artist", "album", "reason"}}
	for _, a := range albums {
		records = append(records, []string{a.Folder, a.Artist, a.Album, a.Reason})
	}
	return writeCSV(path, records)
}

// WriteUnmatchedTracks writes the unmatched-tracks report to path.
func WriteUnmatchedTracks(path string, tracks []UnmatchedTrack) error {
	records := [][]string{{"folder", "artist", "album", "track", "reason"}}
	for _, t := range tracks {
		records = append(records, []string{t.Folder, t.Artist, t.Album, t.Track, t.Reason})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Error()
}
