package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clock := newFakeClock()
	return New(50, WithClock(clock.now)), clock
}

func createPlaying(t *testing.T, st *Store, duration int) *Session {
	t.Helper()
	s, err := st.Create(CreateRequest{
		App:      "Spotify",
		Song:     "Paranoid Android",
		Artist:   "Radiohead",
		Duration: duration,
		Position: 0,
		Playing:  true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestCreateRequiresApp(t *testing.T) {
	st, _ := newTestStore()
	if _, err := st.Create(CreateRequest{Song: "Orphan"}); err == nil {
		t.Fatal("expected error for missing app")
	}
}

func TestPositionExtrapolatesWhilePlaying(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 180)

	got, err := st.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pos := got.EffectivePosition(clock.now()); pos != 0 {
		t.Errorf("position at t=0: %d, want 0", pos)
	}

	clock.advance(5 * time.Second)
	got, _ = st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 5 {
		t.Errorf("position at t=5: %d, want 5", pos)
	}

	// Past the duration the position clamps.
	clock.advance(10 * time.Minute)
	got, _ = st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 180 {
		t.Errorf("position past duration: %d, want 180", pos)
	}
}

// Two successive updates without explicit positions must advance the stored
// position by the real elapsed time, not double it.
func TestUpdateDoesNotDoubleCount(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(10 * time.Second)
	if _, err := st.Update(s.ID, UpdateRequest{Playing: boolPtr(true)}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	clock.advance(10 * time.Second)
	if _, err := st.Update(s.ID, UpdateRequest{Playing: boolPtr(true)}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 20 {
		t.Errorf("position after 2x10s heartbeats: %d, want 20", pos)
	}
	if got.TotalPlayTime != 20 {
		t.Errorf("totalPlayTime = %d, want 20", got.TotalPlayTime)
	}
}

func TestExplicitPositionIsAuthoritative(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(30 * time.Second)
	if _, err := st.Update(s.ID, UpdateRequest{Position: intPtr(7)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 7 {
		t.Errorf("position = %d, want the client-reported 7", pos)
	}
}

func TestPauseFreezesPosition(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 383)

	clock.advance(5 * time.Second)
	if _, err := st.Update(s.ID, UpdateRequest{Playing: boolPtr(false)}); err != nil {
		t.Fatalf("pause: %v", err)
	}

	clock.advance(time.Hour)
	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 5 {
		t.Errorf("paused position = %d, want frozen at 5", pos)
	}
	if got.Status() != "paused" {
		t.Errorf("status = %q, want paused", got.Status())
	}
}

func TestResumeReAnchors(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(5 * time.Second)
	st.Update(s.ID, UpdateRequest{Playing: boolPtr(false)})

	clock.advance(time.Minute)
	st.Update(s.ID, UpdateRequest{Playing: boolPtr(true)})

	clock.advance(3 * time.Second)
	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 8 {
		t.Errorf("position after pause+resume+3s = %d, want 8", pos)
	}
}

func TestSongChangeResetsPositionAndLogsHistory(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 383)

	if st.History().Len() != 1 {
		t.Fatalf("history after create = %d entries, want 1", st.History().Len())
	}

	clock.advance(120 * time.Second)
	if _, err := st.Update(s.ID, UpdateRequest{
		Song:   strPtr("Karma Police"),
		Artist: strPtr("Radiohead"),
	}); err != nil {
		t.Fatalf("song change: %v", err)
	}

	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 0 {
		t.Errorf("position after song change = %d, want 0", pos)
	}
	if st.History().Len() != 2 {
		t.Errorf("history = %d entries, want 2", st.History().Len())
	}

	// Replaying a known track bumps playCount instead of adding a row.
	clock.advance(30 * time.Second)
	st.Update(s.ID, UpdateRequest{
		Song:   strPtr("Paranoid Android"),
		Artist: strPtr("Radiohead"),
	})
	if st.History().Len() != 2 {
		t.Fatalf("history = %d entries after replay, want 2", st.History().Len())
	}
	entries := st.History().List(0)
	if entries[0].Song != "Paranoid Android" || entries[0].PlayCount != 2 {
		t.Errorf("replayed entry = %+v, want Paranoid Android with playCount 2", entries[0])
	}
}

func TestSongChangeWithExplicitPositionKeepsIt(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(10 * time.Second)
	st.Update(s.ID, UpdateRequest{
		Song:     strPtr("Airbag"),
		Artist:   strPtr("Radiohead"),
		Position: intPtr(42),
	})

	got, _ := st.Get(s.ID)
	if pos := got.EffectivePosition(clock.now()); pos != 42 {
		t.Errorf("position = %d, want explicit 42", pos)
	}
}

func TestEndFlushesAndIsTerminal(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(25 * time.Second)
	ended, err := st.End(s.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Position != 25 || ended.TotalPlayTime != 25 {
		t.Errorf("flushed position/total = %d/%d, want 25/25", ended.Position, ended.TotalPlayTime)
	}
	if ended.Active || ended.Playing || ended.LastPlayStart != nil {
		t.Errorf("ended session not fully stopped: %+v", ended)
	}
	if ended.Status() != "stopped" {
		t.Errorf("status = %q, want stopped", ended.Status())
	}

	// Second End reports not found; updates report the session as ended.
	if _, err := st.End(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second End: %v, want ErrNotFound", err)
	}
	if _, err := st.Update(s.ID, UpdateRequest{Playing: boolPtr(true)}); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("update after end: %v, want ErrSessionEnded", err)
	}
}

func TestUpdateUnknownSession(t *testing.T) {
	st, _ := newTestStore()
	if _, err := st.Update("nope", UpdateRequest{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPartialUpdateLeavesOtherFields(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	clock.advance(time.Second)
	st.Update(s.ID, UpdateRequest{Album: strPtr("OK Computer")})

	got, _ := st.Get(s.ID)
	if got.Song != "Paranoid Android" || got.Artist != "Radiohead" {
		t.Errorf("partial update clobbered song fields: %+v", got)
	}
	if got.Album != "OK Computer" {
		t.Errorf("album = %q, want OK Computer", got.Album)
	}
	if !got.Playing {
		t.Error("partial update flipped the playing flag")
	}
}

func TestSweep(t *testing.T) {
	st, clock := newTestStore()

	ended := createPlaying(t, st, 300)
	st.End(ended.ID)

	silent := createPlaying(t, st, 300)

	// Recent enough to survive every window.
	fresh, _ := st.Create(CreateRequest{App: "Tidal", Playing: false})

	clock.advance(3 * time.Minute)
	deleted, paused := st.Sweep()
	if deleted != 0 {
		t.Errorf("deleted = %d after 3m, want 0", deleted)
	}
	if paused != 1 {
		t.Errorf("paused = %d after 3m, want 1 (silent playing session)", paused)
	}

	got, _ := st.Get(silent.ID)
	if got.Playing {
		t.Error("silent playing session was not force-paused")
	}
	if pos := got.EffectivePosition(clock.now()); pos != 180 {
		t.Errorf("force-pause flushed position = %d, want 180", pos)
	}

	// An hour later the ended session ages out.
	clock.advance(time.Hour)
	deleted, _ = st.Sweep()
	if deleted != 1 {
		t.Errorf("deleted = %d after retention, want 1", deleted)
	}
	if _, err := st.Get(ended.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ended session still present: %v", err)
	}

	// Seven hours in, the abandoned active sessions go too.
	clock.advance(6 * time.Hour)
	deleted, _ = st.Sweep()
	if deleted != 2 {
		t.Errorf("deleted = %d for abandoned sessions, want 2", deleted)
	}
	if _, err := st.Get(fresh.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("abandoned session survived: %v", err)
	}
}

// A handler that resolved its entry pointer before a sweep removed the id
// must see the session as gone, not mutate the orphaned record.
func TestSweptEntryRejectsLateMutation(t *testing.T) {
	st, clock := newTestStore()
	s := createPlaying(t, st, 300)

	// Simulate a slow request: the map lookup happened, then the sweeper
	// ran before the entry lock was taken.
	e := st.entry(s.ID)

	clock.advance(7 * time.Hour)
	if deleted, _ := st.Sweep(); deleted != 1 {
		t.Fatalf("Sweep deleted %d, want 1", deleted)
	}

	e.mu.Lock()
	gone := e.deleted
	e.mu.Unlock()
	if !gone {
		t.Fatal("swept entry not flagged as deleted")
	}

	if _, err := st.Update(s.ID, UpdateRequest{Position: intPtr(42)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update after sweep: %v, want ErrNotFound", err)
	}
	if _, err := st.End(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("End after sweep: %v, want ErrNotFound", err)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	h := NewHistory(3)

	for i := 0; i < 4; i++ {
		h.Record(&Session{
			Song:   fmt.Sprintf("Track %d", i),
			Artist: "Artist",
			App:    "Spotify",
		}, clock.now())
		clock.advance(time.Minute)
	}

	if h.Len() != 3 {
		t.Fatalf("history len = %d, want 3", h.Len())
	}
	for _, e := range h.List(0) {
		if e.Song == "Track 0" {
			t.Fatal("oldest entry was not evicted")
		}
	}
}

// Effective position always stays within [0, duration] whatever the elapsed
// time, and equals elapsed time before the clamp kicks in.
func TestEffectivePositionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		duration := rapid.IntRange(1, 600).Draw(t, "duration")
		elapsed := rapid.IntRange(0, 1200).Draw(t, "elapsed")

		st, clock := newTestStore()
		s, err := st.Create(CreateRequest{App: "Spotify", Song: "S", Artist: "A", Duration: duration, Playing: true})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		clock.advance(time.Duration(elapsed) * time.Second)
		got, _ := st.Get(s.ID)
		pos := got.EffectivePosition(clock.now())

		want := elapsed
		if want > duration {
			want = duration
		}
		if pos != want {
			t.Fatalf("position = %d, want %d (elapsed %d, duration %d)", pos, want, elapsed, duration)
		}
	})
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }
