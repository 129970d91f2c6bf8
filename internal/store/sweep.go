package store

import (
	"context"
	"log/slog"
	"time"
)

const (
	// endedRetention is how long ended sessions stay queryable.
	endedRetention = time.Hour
	// abandonedAfter deletes active sessions with no update at all; the
	// owning client is assumed gone for good.
	abandonedAfter = 6 * time.Hour
	// silentPlayingAfter force-pauses sessions that claim to be playing but
	// have not heartbeated; protects against permanently "playing" ghosts
	// when a client crashes.
	silentPlayingAfter = 2 * time.Minute
)

// Sweep garbage-collects the session table: ended sessions past retention
// and abandoned active sessions are deleted, silent playing sessions are
// force-paused. Returns the number deleted and paused.
func (st *Store) Sweep() (deleted, paused int) {
	now := st.now()

	// Holding the write lock for the whole pass excludes request handlers;
	// the deleted flag covers handlers that fetched their entry pointer
	// before the pass started.
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, e := range st.sessions {
		e.mu.Lock()
		s := e.s
		idle := now.Sub(s.LastUpdated)

		switch {
		case !s.Active && idle > endedRetention:
			delete(st.sessions, id)
			e.deleted = true
			deleted++
		case s.Active && idle > abandonedAfter:
			delete(st.sessions, id)
			e.deleted = true
			deleted++
		case s.Active && s.Playing && idle > silentPlayingAfter:
			if s.LastPlayStart != nil {
				elapsed := int(now.Sub(*s.LastPlayStart).Seconds())
				s.Position += elapsed
				s.TotalPlayTime += elapsed
			}
			s.Playing = false
			s.LastPlayStart = nil
			paused++
		}
		e.mu.Unlock()
	}
	return deleted, paused
}

// RunSweeper sweeps on a fixed interval until the context is cancelled.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("session sweeper started", "interval", interval)
	defer slog.Info("session sweeper stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, paused := st.Sweep()
			if deleted > 0 || paused > 0 {
				slog.Debug("sweep completed", "deleted", deleted, "paused", paused)
			}
		}
	}
}
