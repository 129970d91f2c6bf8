// Package agent runs the client-side polling loop: observe the active media
// source, detect transitions, keep the remote session in sync, and drive the
// rich-presence display.
package agent

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"trackwire/internal/enrich"
	"trackwire/internal/media"
	"trackwire/internal/presence"
	"trackwire/internal/sessionapi"
)

// SessionClient is the subset of the session store client the loop uses.
type SessionClient interface {
	Create(ctx context.Context, req sessionapi.CreateRequest) (*sessionapi.CreateResponse, error)
	Update(ctx context.Context, id string, req sessionapi.UpdateRequest) sessionapi.Result
	End(ctx context.Context, id string) sessionapi.Result
}

// Enricher looks up cleaned metadata and artwork for a track.
type Enricher interface {
	Lookup(ctx context.Context, song, artist, album string) (enrich.Metadata, error)
}

const sessionCallTimeout = 10 * time.Second

// Loop owns the client session state. Exactly one instance runs per
// process; iterations never overlap.
type Loop struct {
	sources  []media.Source
	sessions SessionClient
	presence presence.Publisher
	enricher Enricher
	resolver *DurationResolver
	timer    PresenceTimer
	user     string
	log      *slog.Logger
	now      func() time.Time

	sessionID  string
	sessionURL string
	last       *media.Snapshot // last valid snapshot acted on
	artURL     string
	artLabel   string

	// sessionLost is set by the in-flight update goroutine when the remote
	// store evicted our session (404/410); the loop drops the id at the top
	// of its next iteration and recreates lazily on the next transition.
	sessionLost atomic.Bool
	inflight    atomic.Bool
}

// New creates a loop over the given sources and collaborators.
func New(sources []media.Source, sessions SessionClient, pub presence.Publisher, enricher Enricher, user string, log *slog.Logger) *Loop {
	return &Loop{
		sources:  sources,
		sessions: sessions,
		presence: pub,
		enricher: enricher,
		resolver: NewDurationResolver(),
		user:     user,
		log:      log,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. The delay between iterations
// adapts to the playback state.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("polling loop started")
	defer l.log.Info("polling loop stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-timer.C:
		}

		state := l.iterate(ctx)
		timer.Reset(Interval(state))
	}
}

// iterate runs one poll cycle and reports the state driving the next delay.
func (l *Loop) iterate(ctx context.Context) PollState {
	if l.sessionLost.Swap(false) {
		l.log.Info("remote session was evicted, will recreate on next transition")
		l.sessionID = ""
		l.sessionURL = ""
	}

	cur := l.observe(ctx)

	if cur == nil {
		if l.last != nil {
			l.stopSession(ctx)
		}
		return PollIdle
	}

	// Placeholder snapshots are discarded entirely: no transition, no
	// heartbeat, no last-known update. While no session exists yet we poll
	// quickly so the session is created as soon as real metadata appears.
	if !cur.Valid() {
		if l.last == nil {
			return PollWaiting
		}
		if l.last.Playing {
			return PollPlaying
		}
		return PollPaused
	}

	l.resolveDuration(ctx, cur)

	transitions := Detect(l.last, cur)
	for _, tr := range transitions {
		switch tr {
		case AppSwitched:
			l.log.Info("app switched", "from", l.last.SourceApp, "to", cur.SourceApp)
			l.presence.Reset()
			l.endSession()
			l.startSession(ctx, cur)
		case AppStarted:
			l.log.Info("app started", "app", cur.SourceApp)
			l.presence.Reset()
			l.startSession(ctx, cur)
		case SongChanged:
			l.log.Info("now playing", "song", cur.Title, "artist", cur.Artist)
			l.songChanged(ctx, cur)
		case PlayStateChanged:
			l.log.Debug("play state changed", "playing", cur.Playing)
			l.sendUpdate(sessionapi.UpdateRequest{
				Position: intPtr(cur.Position),
				Playing:  boolPtr(cur.Playing),
			})
		case Heartbeat:
			if cur.Playing {
				l.sendUpdate(sessionapi.UpdateRequest{
					Position: intPtr(cur.Position),
					Playing:  boolPtr(cur.Playing),
				})
			}
		}
	}

	l.publishPresence(transitions, cur)
	l.last = cur

	if cur.Playing {
		return PollPlaying
	}
	return PollPaused
}

// observe polls every source and picks the snapshot to act on.
func (l *Loop) observe(ctx context.Context) *media.Snapshot {
	snapshots := make([]*media.Snapshot, 0, len(l.sources))
	for _, src := range l.sources {
		snap, err := src.Poll(ctx)
		if err != nil {
			l.log.Debug("media source poll failed", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return media.Select(snapshots)
}

// resolveDuration works around transient zero-duration reads by re-polling
// with backoff, then substituting the last known duration.
func (l *Loop) resolveDuration(ctx context.Context, cur *media.Snapshot) {
	first := true
	cur.Duration = l.resolver.Resolve(func() int {
		if first {
			first = false
			return cur.Duration
		}
		snap := l.observe(ctx)
		if snap != nil && snap.Valid() && snap.Identity() == cur.Identity() {
			return snap.Duration
		}
		return 0
	})
}

// startSession creates the remote session with the full known state. On
// failure the session id stays empty and the next transition retries.
func (l *Loop) startSession(ctx context.Context, cur *media.Snapshot) {
	meta := l.enrichFor(ctx, cur)

	req := sessionapi.CreateRequest{
		App:        cur.SourceApp,
		Song:       fallback(meta.CleanedSong, cur.Title),
		Artist:     fallback(meta.CleanedArtist, cur.Artist),
		Album:      fallback(meta.Album, cur.Album),
		AlbumArt:   meta.ArtURL,
		Duration:   cur.Duration,
		Position:   cur.Position,
		Playing:    cur.Playing,
		User:       l.user,
		Genre:      meta.Genre,
		Year:       meta.Year,
		Label:      meta.Label,
		TrackCount: meta.TrackCount,
	}

	callCtx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	created, err := l.sessions.Create(callCtx, req)
	if err != nil {
		l.log.Warn("session create failed, will retry on next transition", "error", err)
		l.sessionID = ""
		l.sessionURL = ""
		return
	}
	l.sessionID = created.SessionID
	l.sessionURL = created.URL
	l.log.Info("session created", "sessionId", l.sessionID)
}

// songChanged pushes the new track to the remote session, creating one if
// an earlier create failed or the session was evicted.
func (l *Loop) songChanged(ctx context.Context, cur *media.Snapshot) {
	if l.sessionID == "" {
		l.startSession(ctx, cur)
		return
	}

	meta := l.enrichFor(ctx, cur)
	l.sendUpdate(sessionapi.UpdateRequest{
		Song:       strPtr(fallback(meta.CleanedSong, cur.Title)),
		Artist:     strPtr(fallback(meta.CleanedArtist, cur.Artist)),
		Album:      strPtr(fallback(meta.Album, cur.Album)),
		AlbumArt:   strPtr(meta.ArtURL),
		Duration:   intPtr(cur.Duration),
		Position:   intPtr(cur.Position),
		Playing:    boolPtr(cur.Playing),
		Genre:      strPtr(meta.Genre),
		Year:       strPtr(meta.Year),
		Label:      strPtr(meta.Label),
		TrackCount: intPtr(meta.TrackCount),
	})
}

// enrichFor looks up metadata with fallback to the raw snapshot fields and
// caches the presence artwork.
func (l *Loop) enrichFor(ctx context.Context, cur *media.Snapshot) enrich.Metadata {
	meta, err := l.enricher.Lookup(ctx, cur.Title, cur.Artist, cur.Album)
	if err != nil {
		l.log.Debug("metadata enrichment failed, using raw fields", "error", err)
		meta = enrich.Metadata{}
	}
	l.artURL = meta.ArtURL
	l.artLabel = fallback(meta.Album, cur.Album)
	return meta
}

// sendUpdate issues a fire-and-forget update. Only one session call may be
// outstanding at a time; a busy slot skips this cycle and the next heartbeat
// resends the state.
func (l *Loop) sendUpdate(req sessionapi.UpdateRequest) {
	if l.sessionID == "" {
		return
	}
	if !l.inflight.CompareAndSwap(false, true) {
		l.log.Debug("session call already in flight, skipping update")
		return
	}

	id := l.sessionID
	go func() {
		defer l.inflight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
		defer cancel()

		res := l.sessions.Update(ctx, id, req)
		switch {
		case res.Gone():
			l.sessionLost.Store(true)
		case !res.OK():
			l.log.Warn("session update failed", "sessionId", id, "status", res.Status, "error", res.Err)
		}
	}()
}

// endSession tells the remote store the session is over, best effort.
func (l *Loop) endSession() {
	if l.sessionID == "" {
		return
	}
	id := l.sessionID
	l.sessionID = ""
	l.sessionURL = ""

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
		defer cancel()

		if res := l.sessions.End(ctx, id); !res.OK() && !res.Gone() {
			l.log.Warn("session end failed", "sessionId", id, "status", res.Status, "error", res.Err)
		}
	}()
}

// stopSession applies all end-of-session effects when no whitelisted app is
// active anymore.
func (l *Loop) stopSession(_ context.Context) {
	l.log.Info("app stopped", "app", l.last.SourceApp)
	l.endSession()
	l.last = nil
	l.artURL = ""
	l.artLabel = ""
	l.resolver.Reset()
	l.timer.Clear()
	if err := l.presence.Clear(); err != nil {
		l.log.Debug("failed to clear presence", "error", err)
	}
}

// publishPresence keeps the rich-presence display in step with playback.
func (l *Loop) publishPresence(transitions []Transition, cur *media.Snapshot) {
	songChanged := false
	resumed := false
	stateChanged := false
	for _, tr := range transitions {
		switch tr {
		case AppStarted, AppSwitched, SongChanged:
			songChanged = true
		case PlayStateChanged:
			stateChanged = true
			resumed = cur.Playing
		}
	}

	if !cur.Playing {
		l.timer.Clear()
		if stateChanged || songChanged {
			if err := l.presence.Clear(); err != nil {
				l.log.Debug("failed to clear presence", "error", err)
			}
		}
		return
	}

	recomputed := l.timer.Update(songChanged, resumed, cur.Position, cur.Duration, l.now())
	if !songChanged && !recomputed {
		return
	}

	err := l.presence.Publish(presence.Update{
		Song:     cur.Title,
		Artist:   cur.Artist,
		ArtURL:   l.artURL,
		ArtLabel: l.artLabel,
		Start:    l.timer.Start(),
		End:      l.timer.End(),
		URL:      l.sessionURL,
	})
	if err != nil {
		l.log.Debug("failed to publish presence", "error", err)
	}
}

// shutdown abandons any in-flight work and clears external state on exit.
func (l *Loop) shutdown() {
	l.endSession()
	if err := l.presence.Clear(); err != nil {
		l.log.Debug("failed to clear presence", "error", err)
	}
}

func fallback(preferred, raw string) string {
	if preferred != "" {
		return preferred
	}
	return raw
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }
