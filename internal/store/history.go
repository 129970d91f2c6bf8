package store

import (
	"sort"
	"sync"
	"time"

	"trackwire/internal/media"
)

// HistoryEntry is one row of the play history log, keyed by track identity.
type HistoryEntry struct {
	TrackID   string    `json:"trackId"`
	Song      string    `json:"song"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	AlbumArt  string    `json:"albumArt"`
	Genre     string    `json:"genre"`
	Year      string    `json:"year"`
	App       string    `json:"app"`
	User      string    `json:"user"`
	PlayCount int       `json:"playCount"`
	PlayedAt  time.Time `json:"playedAt"`
}

// History is an append-only-with-upsert log capped at the N most recent
// tracks. Re-playing a known track bumps its playCount and playedAt instead
// of adding a row; on overflow the entry with the oldest playedAt is
// evicted. (The enrichment artwork cache uses a different, insertion-order
// policy; the two are independent.)
type History struct {
	mu      sync.Mutex
	limit   int
	entries map[string]*HistoryEntry
}

// NewHistory creates a history log keeping at most limit tracks.
func NewHistory(limit int) *History {
	return &History{
		limit:   limit,
		entries: make(map[string]*HistoryEntry),
	}
}

// Record upserts a history entry from the session's current song.
func (h *History) Record(s *Session, playedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := media.Identity(s.Song, s.Artist)
	if existing, ok := h.entries[id]; ok {
		existing.PlayCount++
		existing.PlayedAt = playedAt
		existing.Album = s.Album
		existing.AlbumArt = s.AlbumArt
		existing.App = s.App
		existing.User = s.User
		return
	}

	h.entries[id] = &HistoryEntry{
		TrackID:   id,
		Song:      s.Song,
		Artist:    s.Artist,
		Album:     s.Album,
		AlbumArt:  s.AlbumArt,
		Genre:     s.Genre,
		Year:      s.Year,
		App:       s.App,
		User:      s.User,
		PlayCount: 1,
		PlayedAt:  playedAt,
	}
	h.evictLocked()
}

// List returns up to limit entries, most recent first. A non-positive limit
// returns everything.
func (h *History) List(limit int) []HistoryEntry {
	return h.filter(limit, func(e *HistoryEntry) bool { return true })
}

// ByUser returns the user's entries, most recent first.
func (h *History) ByUser(user string) []HistoryEntry {
	return h.filter(0, func(e *HistoryEntry) bool { return e.User == user })
}

// Remove deletes the entry for a track id, reporting whether it existed.
func (h *History) Remove(trackID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.entries[trackID]
	delete(h.entries, trackID)
	return ok
}

// Clear drops the whole log.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string]*HistoryEntry)
}

// Len returns the number of tracks currently logged.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) filter(limit int, keep func(*HistoryEntry) bool) []HistoryEntry {
	h.mu.Lock()
	out := make([]HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		if keep(e) {
			out = append(out, *e)
		}
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].PlayedAt.After(out[j].PlayedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// evictLocked drops the oldest entries until the log fits its cap.
func (h *History) evictLocked() {
	for len(h.entries) > h.limit {
		oldestID := ""
		var oldest time.Time
		for id, e := range h.entries {
			if oldestID == "" || e.PlayedAt.Before(oldest) {
				oldestID = id
				oldest = e.PlayedAt
			}
		}
		delete(h.entries, oldestID)
	}
}
