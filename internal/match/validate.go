package match

import (
	"fmt"
	"strings"

	"github.com/Slavster/vinyl-list/internal/discogs"
)

// Method records which pass of the fallback chain produced a resolution.
const (
	MethodRelease = "release_url"
	MethodMaster  = "master_url"
	MethodSearch  = "search_fallback"
	MethodNone    = "none"
)

// Confidence buckets, ordered strongest to weakest.
const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidenceVeryLow = "very_low"
	ConfidenceUnknown = "unknown"
)

// Validity classifies one release against the configured physical format and
// regional preference.
type Validity struct {
	TargetFormat    bool
	PreferredRegion bool
	Reason          string
}

// Validate checks a release's format list and country. Format is checked
// first and short-circuits: a release with no matching format never gets a
// region verdict. Scan order is the listed order, first match wins.
func Validate(release *discogs.Release, format, country string) Validity {
	matched := false
	names := make([]string, 0, len(release.Formats))
	for _, f := range release.Formats {
		names = append(names, f.Name)
		if !matched && strings.EqualFold(f.Name, format) {
			matched = true
		}
	}
	if !matched {
		return Validity{Reason: fmt.Sprintf("not %s (formats: %s)", strings.ToLower(format), strings.Join(names, ", "))}
	}

	switch {
	case release.Country == "":
		return Validity{TargetFormat: true, Reason: fmt.Sprintf("%s release, country not specified", format)}
	case strings.EqualFold(release.Country, country):
		return Validity{TargetFormat: true, PreferredRegion: true,
			Reason: fmt.Sprintf("%s %s pressing", country, format)}
	default:
		return Validity{TargetFormat: true,
			Reason: fmt.Sprintf("%s release from %s (prefer %s)", format, release.Country, country)}
	}
}

// Confidence maps a resolution outcome to its bucket. Only a direct release
// match in the preferred region rates high, and a release match outside it
// falls all the way to unknown. A master match rates medium whenever the
// format is right. A search hit rates low only with the preferred region and
// at least one service-hosted candidate URL behind it; every other search
// outcome is very_low.
func Confidence(method string, hasServiceCandidates, targetFormat, preferredRegion bool) string {
	switch {
	case method == MethodRelease && targetFormat && preferredRegion:
		return ConfidenceHigh
	case method == MethodMaster && targetFormat:
		return ConfidenceMedium
	case method == MethodSearch && targetFormat && preferredRegion && hasServiceCandidates:
		return ConfidenceLow
	case method == MethodSearch:
		return ConfidenceVeryLow
	default:
		return ConfidenceUnknown
	}
}
