package gcs

import (
	"net/url"
	"path"
	"strings"
)

// ownerRoot is the fixed top-level directory under which owner folders live.
const ownerRoot = "covers/"

// URI builds the gs:// locator for an object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// FilenameFromURI returns the last path segment of a storage locator.
func FilenameFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// OwnerFromURI derives the owner label for an image locator.
//
// Convention (applied uniformly): the owner is all directory segments of the
// object path below the fixed "covers/" root, joined with underscores.
// gs://b/covers/Dad/Shed/img.jpg -> "Dad_Shed". Files directly under the
// root have no owner. When the configured prefix itself carries the
// directory structure (objects sit directly under a multi-segment prefix
// that does not re-state "covers/"), the owner derives from the prefix's own
// segments below the root.
func OwnerFromURI(uri, bucket, prefix string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	p := strings.TrimPrefix(u.Path, "/")
	p = strings.TrimPrefix(p, bucket+"/")

	var rel string
	switch {
	case strings.HasPrefix(p, ownerRoot):
		rel = p[len(ownerRoot):]
	case prefix != "" && strings.HasPrefix(p, prefix):
		// Object addressed relative to a custom prefix: the prefix's own
		// directory segments name the owner.
		trimmed := strings.TrimPrefix(prefix, ownerRoot)
		return joinSegments(splitSegments(trimmed))
	default:
		rel = p
	}

	parts := splitSegments(rel)
	if len(parts) <= 1 {
		// Just a filename, no owner folder.
		return ""
	}
	return joinSegments(parts[:len(parts)-1])
}

func splitSegments(p string) []string {
	var parts []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func joinSegments(parts []string) string {
	return strings.Join(parts, "_")
}
