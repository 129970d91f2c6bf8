package httpapi

import (
	"time"

	"trackwire/internal/store"
)

// SessionView is the client-facing session shape. Position and total play
// time are computed at read time so they track the wall clock between
// heartbeats.
type SessionView struct {
	SessionID        string    `json:"sessionId"`
	App              string    `json:"app"`
	User             string    `json:"user,omitempty"`
	Song             string    `json:"song,omitempty"`
	Artist           string    `json:"artist,omitempty"`
	Album            string    `json:"album,omitempty"`
	AlbumArt         string    `json:"albumArt,omitempty"`
	Genre            string    `json:"genre,omitempty"`
	Year             string    `json:"year,omitempty"`
	Label            string    `json:"label,omitempty"`
	TrackCount       int       `json:"trackCount,omitempty"`
	AlbumDescription string    `json:"albumDescription,omitempty"`
	ArtistBio        string    `json:"artistBio,omitempty"`
	ArtistImage      string    `json:"artistImage,omitempty"`
	Duration         int       `json:"duration"`
	Position         int       `json:"position"`
	TotalPlayTime    int       `json:"totalPlayTime"`
	Playing          bool      `json:"playing"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

func newSessionView(s *store.Session, now time.Time) SessionView {
	total := s.TotalPlayTime
	if s.Playing && s.LastPlayStart != nil {
		total += int(now.Sub(*s.LastPlayStart).Seconds())
	}
	return SessionView{
		SessionID:        s.ID,
		App:              s.App,
		User:             s.User,
		Song:             s.Song,
		Artist:           s.Artist,
		Album:            s.Album,
		AlbumArt:         s.AlbumArt,
		Genre:            s.Genre,
		Year:             s.Year,
		Label:            s.Label,
		TrackCount:       s.TrackCount,
		AlbumDescription: s.AlbumDescription,
		ArtistBio:        s.ArtistBio,
		ArtistImage:      s.ArtistImage,
		Duration:         s.Duration,
		Position:         s.EffectivePosition(now),
		TotalPlayTime:    total,
		Playing:          s.Playing,
		Status:           s.Status(),
		CreatedAt:        s.CreatedAt,
		LastUpdated:      s.LastUpdated,
	}
}

// FeedEvent is pushed to websocket subscribers on every session mutation.
type FeedEvent struct {
	Type    string      `json:"type"` // session_created, session_updated, session_ended
	Session SessionView `json:"session"`
}
