// Package media defines the point-in-time playback snapshot produced by a
// media source and the rules for deciding which snapshots are worth acting on.
package media

import (
	"context"
	"sort"
	"strings"
)

// Snapshot is one poll's observation of playback state from a media source.
// It is not retained beyond a poll cycle except as "last known".
type Snapshot struct {
	Title     string
	Artist    string
	Album     string
	Playing   bool
	Position  int // seconds
	Duration  int // seconds, 0 means unknown
	SourceApp string
}

// Source yields playback snapshots from one media application.
// Poll returns (nil, nil) when the source has no active playback session.
type Source interface {
	Poll(ctx context.Context) (*Snapshot, error)
}

// Identity derives the track identity key from a title and artist.
// Two snapshots denote the same track iff their identities are equal,
// regardless of casing or whitespace differences.
func Identity(title, artist string) string {
	return normalize(title) + "|" + normalize(artist)
}

// Identity returns the snapshot's track identity key.
func (s *Snapshot) Identity() string {
	return Identity(s.Title, s.Artist)
}

// Valid reports whether the snapshot carries a real song. Snapshots with
// empty or placeholder title/artist must be discarded entirely, not even
// counted as a heartbeat.
func (s *Snapshot) Valid() bool {
	return !IsPlaceholder(s.Title) && !IsPlaceholder(s.Artist)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// placeholderExact are app-reported values that denote a loading, buffering
// or ad state rather than a song.
var placeholderExact = map[string]struct{}{
	"connecting...":  {},
	"connecting":     {},
	"loading...":     {},
	"loading":        {},
	"buffering...":   {},
	"buffering":      {},
	"unknown":        {},
	"unknown artist": {},
	"unknown title":  {},
	"advertisement":  {},
	"ad":             {},
}

// IsPlaceholder reports whether a title or artist string denotes a non-song
// loading/buffering/ad state. Empty strings and strings shorter than two
// characters are placeholders too.
func IsPlaceholder(s string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if len([]rune(trimmed)) < 2 {
		return true
	}
	if _, ok := placeholderExact[trimmed]; ok {
		return true
	}
	if strings.HasPrefix(trimmed, "connecting to") || strings.HasPrefix(trimmed, "loading") {
		return true
	}
	return false
}

// KnownApps is the whitelist of music application identifiers. A source app
// matches when it contains one of these, case-insensitively.
var KnownApps = []string{
	"spotify",
	"apple music",
	"itunes",
	"tidal",
	"deezer",
	"youtube music",
	"soundcloud",
	"amazon music",
	"foobar2000",
	"musicbee",
	"winamp",
	"vlc",
}

// MatchApp reports whether the source app identifier belongs to a known
// music application.
func MatchApp(source string) bool {
	lower := strings.ToLower(source)
	for _, app := range KnownApps {
		if strings.Contains(lower, app) {
			return true
		}
	}
	return false
}

// Select picks the snapshot to act on among concurrently reporting sources.
// Only whitelisted apps are considered; a playing source wins over a paused
// one. Ties break deterministically by source app identifier.
func Select(snapshots []*Snapshot) *Snapshot {
	candidates := make([]*Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s == nil || !MatchApp(s.SourceApp) {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.ToLower(candidates[i].SourceApp) < strings.ToLower(candidates[j].SourceApp)
	})
	for _, s := range candidates {
		if s.Playing {
			return s
		}
	}
	return candidates[0]
}
