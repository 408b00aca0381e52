// Package match resolves noisy per-image signals (candidate web URLs, OCR
// text, best-guess labels) to a single Discogs release, classified by
// confidence. The resolver is a single-pass fallback chain: direct release
// URLs, then master URLs, then a text search.
package match

import (
	"regexp"
	"strings"

	"github.com/Slavster/vinyl-list/internal/vision"
)

const (
	// ResolveLimit caps how many candidate URLs the resolver will chase.
	ResolveLimit = 10
	// AuditLimit caps how many candidate URLs land in report columns.
	AuditLimit = 3

	serviceHost = "discogs.com"
)

// Candidates partitions an image's matching-page URLs by whether they point
// at the catalog service. Order follows the label service's ranking.
type Candidates struct {
	Service []string
	Other   []string
}

// RefKind is the entity type a service URL points at.
type RefKind string

const (
	RefRelease RefKind = "release"
	RefMaster  RefKind = "master"
)

// Ref is a parsed service URL: entity kind plus numeric id.
type Ref struct {
	Kind RefKind
	ID   int
	URL  string
}

var (
	releasePattern = regexp.MustCompile(`/release/(\d+)`)
	masterPattern  = regexp.MustCompile(`/master/(\d+)`)
)

// Extract dedupes and partitions an image's candidate URLs, keeping at most
// limit of each kind. Order is preserved; duplicates compare by exact string.
func Extract(label vision.LabelResult, limit int) Candidates {
	var c Candidates
	seen := make(map[string]bool)
	for _, u := range label.PageURLs {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		if strings.Contains(strings.ToLower(u), serviceHost) {
			if len(c.Service) < limit {
				c.Service = append(c.Service, u)
			}
		} else if len(c.Other) < limit {
			c.Other = append(c.Other, u)
		}
	}
	return c
}

// ClassifyURL parses a service URL into a release or master reference.
// URLs matching neither path shape report ok=false and are kept only as raw
// audit candidates.
func ClassifyURL(u string) (Ref, bool) {
	if m := releasePattern.FindStringSubmatch(u); m != nil {
		return Ref{Kind: RefRelease, ID: atoi(m[1]), URL: u}, true
	}
	if m := masterPattern.FindStringSubmatch(u); m != nil {
		return Ref{Kind: RefMaster, ID: atoi(m[1]), URL: u}, true
	}
	return Ref{}, false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
