package spotify

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	artistDisambiguation = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	playlistIDPattern    = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	playlistURLPattern   = regexp.MustCompile(`playlist[/:]([A-Za-z0-9]{22})`)

	editionMarkers = []string{"deluxe", "special", "expanded", "remaster"}
)

// CleanArtistName strips the Discogs trailing numeric disambiguation, as in
// "Nirvana (2)".
func CleanArtistName(name string) string {
	return strings.TrimSpace(artistDisambiguation.ReplaceAllString(name, ""))
}

// ExtractPlaylistID accepts a playlist URL, a spotify: URI, or a bare 22-char
// id and returns the id.
func ExtractPlaylistID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if playlistIDPattern.MatchString(s) {
		return s, true
	}
	if m := playlistURLPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// MatchAlbum picks the best search hit for a catalog album. An exact match
// requires strict case-insensitive title equality and the artist among the
// hit's artists after disambiguation cleanup. Ties between exact matches are
// broken by the release year closest to the catalog year (within 2), then by
// preferring an edition-free title unless the catalog title itself names an
// edition. With no exact match the first search hit is taken.
func MatchAlbum(hits []Album, artist, title string, year int) *Album {
	wantTitle := strings.ToLower(strings.TrimSpace(title))
	wantArtist := strings.ToLower(CleanArtistName(artist))

	var exact []Album
	for _, hit := range hits {
		if strings.ToLower(strings.TrimSpace(hit.Name)) != wantTitle {
			continue
		}
		for _, a := range hit.Artists {
			if strings.ToLower(CleanArtistName(a.Name)) == wantArtist {
				exact = append(exact, hit)
				break
			}
		}
	}

	switch len(exact) {
	case 0:
		if len(hits) > 0 {
			return &hits[0]
		}
		return nil
	case 1:
		return &exact[0]
	}

	if year > 0 {
		best, bestDiff := -1, 3
		for i, hit := range exact {
			y := releaseYear(hit.ReleaseDate)
			if y == 0 {
				continue
			}
			if diff := abs(y - year); diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		if best >= 0 {
			return &exact[best]
		}
	}
	wantEdition := namesEdition(title)
	for i, hit := range exact {
		if namesEdition(hit.Name) == wantEdition {
			return &exact[i]
		}
	}
	return &exact[0]
}

func namesEdition(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range editionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
