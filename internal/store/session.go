// Package store is the authoritative in-memory session table. A session
// records one continuous listening context; its position extrapolates from
// wall-clock time while playing so reads stay close to real time between
// client heartbeats.
package store

import "time"

// Session is the server-side record of one listening context.
type Session struct {
	ID               string
	App              string
	User             string
	Song             string
	Artist           string
	Album            string
	AlbumArt         string
	Genre            string
	Year             string
	Label            string
	TrackCount       int
	AlbumDescription string
	ArtistBio        string
	ArtistImage      string

	Duration int // seconds, 0 = unknown
	// Position is the last explicitly set or flushed position; the live
	// value is EffectivePosition.
	Position      int
	LastPlayStart *time.Time // wall-clock time the current playing run began
	TotalPlayTime int        // accumulated seconds while playing
	Playing       bool
	Active        bool
	CreatedAt     time.Time
	LastUpdated   time.Time
}

// EffectivePosition extrapolates the playback position to now, clamped to
// [0, Duration] when the duration is known.
func (s *Session) EffectivePosition(now time.Time) int {
	pos := s.Position
	if s.Playing && s.LastPlayStart != nil {
		pos += int(now.Sub(*s.LastPlayStart).Seconds())
	}
	if pos < 0 {
		pos = 0
	}
	if s.Duration > 0 && pos > s.Duration {
		pos = s.Duration
	}
	return pos
}

// Status derives the display status from active and playing.
func (s *Session) Status() string {
	switch {
	case !s.Active:
		return "stopped"
	case s.Playing:
		return "playing"
	default:
		return "paused"
	}
}

// clone returns a copy safe to read outside the store's locks.
func (s *Session) clone() *Session {
	out := *s
	if s.LastPlayStart != nil {
		t := *s.LastPlayStart
		out.LastPlayStart = &t
	}
	return &out
}
