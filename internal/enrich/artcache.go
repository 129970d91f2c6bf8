package enrich

import (
	"strings"
	"sync"
)

// artCache caps artwork URLs by insertion order: when full, the first key
// inserted is evicted regardless of how recently it was hit. This is
// deliberately not the recency-based policy the server's history log uses.
type artCache struct {
	mu    sync.Mutex
	cap   int
	urls  map[string]string
	order []string
}

func newArtCache(capacity int) *artCache {
	return &artCache{
		cap:  capacity,
		urls: make(map[string]string, capacity),
	}
}

func artKey(song, artist string) string {
	return strings.ToLower(strings.TrimSpace(song)) + "|" + strings.ToLower(strings.TrimSpace(artist))
}

func (c *artCache) get(song, artist string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.urls[artKey(song, artist)]
	return u, ok
}

func (c *artCache) put(song, artist, artURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := artKey(song, artist)
	if _, exists := c.urls[key]; exists {
		c.urls[key] = artURL
		return
	}

	if len(c.order) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.urls, oldest)
	}
	c.urls[key] = artURL
	c.order = append(c.order, key)
}
