package vision

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Cache persists label results keyed by image locator so a re-run never
// re-annotates an image it has already paid for. Entries are never pruned.
type Cache struct {
	path    string
	entries map[string]LabelResult
}

// LoadCache reads the cache file if present. A missing or corrupt file
// starts an empty cache rather than failing the run.
func LoadCache(path string, logger *slog.Logger) *Cache {
	c := &Cache{path: path, entries: make(map[string]LabelResult)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not load label cache, starting fresh", "path", path, "err", err)
		}
		return c
	}
	if err := yaml.Unmarshal(data, &c.entries); err != nil {
		logger.Warn("could not parse label cache, starting fresh", "path", path, "err", err)
		c.entries = make(map[string]LabelResult)
	}
	return c
}

// Get returns the cached result for an image locator.
func (c *Cache) Get(uri string) (LabelResult, bool) {
	result, ok := c.entries[uri]
	return result, ok
}

// Set stores a result under its own URI.
func (c *Cache) Set(result LabelResult) {
	if result.URI != "" {
		c.entries[result.URI] = result
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Save writes the cache back to disk.
func (c *Cache) Save() error {
	data, err := yaml.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encode label cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write label cache %s: %w", c.path, err)
	}
	return nil
}
