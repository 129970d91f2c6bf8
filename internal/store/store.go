package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackwire/internal/media"
)

var (
	// ErrNotFound means no session exists under the given id.
	ErrNotFound = errors.New("session not found")
	// ErrSessionEnded means the session exists but was already ended;
	// callers should stop updating it and start a new one.
	ErrSessionEnded = errors.New("session already ended")
)

// CreateRequest carries the initial state for a new session. App is the
// only required field; an initial song, when present, is logged to history
// immediately.
type CreateRequest struct {
	App              string `json:"app"`
	Song             string `json:"song"`
	Artist           string `json:"artist"`
	Album            string `json:"album"`
	AlbumArt         string `json:"albumArt"`
	Duration         int    `json:"duration"`
	Position         int    `json:"position"`
	Playing          bool   `json:"playing"`
	User             string `json:"user"`
	Genre            string `json:"genre"`
	Year             string `json:"year"`
	Label            string `json:"label"`
	TrackCount       int    `json:"trackCount"`
	AlbumDescription string `json:"albumDescription"`
	ArtistBio        string `json:"artistBio"`
	ArtistImage      string `json:"artistImage"`
}

// UpdateRequest carries a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Song             *string `json:"song"`
	Artist           *string `json:"artist"`
	Album            *string `json:"album"`
	AlbumArt         *string `json:"albumArt"`
	Duration         *int    `json:"duration"`
	Position         *int    `json:"position"`
	Playing          *bool   `json:"playing"`
	Genre            *string `json:"genre"`
	Year             *string `json:"year"`
	Label            *string `json:"label"`
	TrackCount       *int    `json:"trackCount"`
	AlbumDescription *string `json:"albumDescription"`
	ArtistBio        *string `json:"artistBio"`
	ArtistImage      *string `json:"artistImage"`
}

type entry struct {
	mu sync.Mutex
	s  *Session
	// deleted is set by the sweeper when it removes the entry from the
	// map. A caller that fetched the entry pointer before the removal sees
	// the flag under the entry lock and treats the session as gone instead
	// of mutating the orphan.
	deleted bool
}

// Store holds every session keyed by id. The outer lock guards the map;
// each entry's lock serializes the read-elapsed-then-write sequence so two
// concurrent updates to one session can never interleave their elapsed-time
// calculations.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	history  *History
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// New creates an empty store whose history keeps at most historyLimit
// entries.
func New(historyLimit int, opts ...Option) *Store {
	st := &Store{
		sessions: make(map[string]*entry),
		history:  NewHistory(historyLimit),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// History exposes the store's play history log.
func (st *Store) History() *History { return st.history }

// Create opens a new session and returns a read-only copy of it.
func (st *Store) Create(req CreateRequest) (*Session, error) {
	if req.App == "" {
		return nil, errors.New("app is required")
	}

	now := st.now()
	s := &Session{
		ID:               uuid.NewString(),
		App:              req.App,
		User:             req.User,
		Song:             req.Song,
		Artist:           req.Artist,
		Album:            req.Album,
		AlbumArt:         req.AlbumArt,
		Genre:            req.Genre,
		Year:             req.Year,
		Label:            req.Label,
		TrackCount:       req.TrackCount,
		AlbumDescription: req.AlbumDescription,
		ArtistBio:        req.ArtistBio,
		ArtistImage:      req.ArtistImage,
		Duration:         req.Duration,
		Position:         req.Position,
		Playing:          req.Playing,
		Active:           true,
		CreatedAt:        now,
		LastUpdated:      now,
	}
	if s.Playing {
		t := now
		s.LastPlayStart = &t
	}

	st.mu.Lock()
	st.sessions[s.ID] = &entry{s: s}
	st.mu.Unlock()

	if s.Song != "" {
		st.history.Record(s, now)
	}
	return s.clone(), nil
}

// Update applies a partial update under the session's lock. A client-
// reported position is authoritative over server extrapolation; without
// one, a same-song playing session first advances its position by the time
// elapsed since the last anchor. An undeclared song change resets the
// position to zero and logs a history entry for the new song.
func (st *Store) Update(id string, req UpdateRequest) (*Session, error) {
	e := st.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}

	s := e.s
	if !s.Active {
		return nil, ErrSessionEnded
	}

	now := st.now()

	elapsed := 0
	if s.Playing && s.LastPlayStart != nil {
		elapsed = int(now.Sub(*s.LastPlayStart).Seconds())
	}

	newSong, newArtist := s.Song, s.Artist
	if req.Song != nil {
		newSong = *req.Song
	}
	if req.Artist != nil {
		newArtist = *req.Artist
	}
	songChanging := media.Identity(newSong, newArtist) != media.Identity(s.Song, s.Artist)

	switch {
	case req.Position != nil:
		s.Position = *req.Position
	case songChanging:
		s.Position = 0
	default:
		s.Position += elapsed
	}
	if elapsed > 0 {
		s.TotalPlayTime += elapsed
	}

	s.Song = newSong
	s.Artist = newArtist
	if req.Album != nil {
		s.Album = *req.Album
	}
	if req.AlbumArt != nil {
		s.AlbumArt = *req.AlbumArt
	}
	if req.Duration != nil {
		s.Duration = *req.Duration
	}
	if req.Genre != nil {
		s.Genre = *req.Genre
	}
	if req.Year != nil {
		s.Year = *req.Year
	}
	if req.Label != nil {
		s.Label = *req.Label
	}
	if req.TrackCount != nil {
		s.TrackCount = *req.TrackCount
	}
	if req.AlbumDescription != nil {
		s.AlbumDescription = *req.AlbumDescription
	}
	if req.ArtistBio != nil {
		s.ArtistBio = *req.ArtistBio
	}
	if req.ArtistImage != nil {
		s.ArtistImage = *req.ArtistImage
	}
	if req.Playing != nil {
		s.Playing = *req.Playing
	}

	// Re-anchor: any mutation consumes the previous anchor above, so the
	// run restarts from now while playing and stops extrapolating while
	// paused.
	if s.Playing {
		t := now
		s.LastPlayStart = &t
	} else {
		s.LastPlayStart = nil
	}
	s.LastUpdated = now

	if songChanging && s.Song != "" {
		st.history.Record(s, now)
	}

	return s.clone(), nil
}

// End marks the session inactive, flushing any playing run into the stored
// position. Ending an unknown or already-ended session reports ErrNotFound.
func (st *Store) End(id string) (*Session, error) {
	e := st.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}

	s := e.s
	if !s.Active {
		return nil, ErrNotFound
	}

	now := st.now()
	if s.Playing && s.LastPlayStart != nil {
		elapsed := int(now.Sub(*s.LastPlayStart).Seconds())
		s.Position += elapsed
		s.TotalPlayTime += elapsed
	}
	s.Active = false
	s.Playing = false
	s.LastPlayStart = nil
	s.LastUpdated = now

	return s.clone(), nil
}

// Get returns a copy of the session, or ErrNotFound.
func (st *Store) Get(id string) (*Session, error) {
	e := st.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	return e.s.clone(), nil
}

// Active returns copies of all active sessions, newest first.
func (st *Store) Active() []*Session {
	return st.collect(func(s *Session) bool { return s.Active })
}

// ByUser returns copies of the user's sessions, newest first.
func (st *Store) ByUser(user string) []*Session {
	return st.collect(func(s *Session) bool { return s.User == user })
}

// Count returns the number of sessions currently held, active or not.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Now exposes the store's clock so views can compute live positions with
// the same time source.
func (st *Store) Now() time.Time { return st.now() }

func (st *Store) entry(id string) *entry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

func (st *Store) collect(keep func(*Session) bool) []*Session {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]*Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && keep(e.s) {
			out = append(out, e.s.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
