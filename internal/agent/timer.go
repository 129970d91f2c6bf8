package agent

import "time"

// fallbackTrackLength estimates the end timestamp when the media API has not
// yet reported a duration; it is corrected once a real duration shows up.
const fallbackTrackLength = 3 * time.Minute

// PresenceTimer derives the stable (start, end) timestamp pair shown by the
// presence display. The pair is recomputed only when necessary so that
// repeated heartbeats never make the displayed elapsed time jitter.
type PresenceTimer struct {
	start     time.Time
	end       time.Time
	valid     bool
	estimated bool // end was derived from the fallback length, not a real duration
}

// Update recomputes the timestamp pair when one of the recompute triggers
// holds: no timer exists yet, the song changed, playback resumed from pause,
// or a nonzero duration just became available after an earlier zero-duration
// estimate. Returns true when the pair changed.
func (t *PresenceTimer) Update(songChanged, resumed bool, position, duration int, now time.Time) bool {
	recovering := t.valid && duration > 0 && (t.estimated || !t.end.After(t.start))
	if t.valid && !songChanged && !resumed && !recovering {
		return false
	}

	t.start = now.Add(-time.Duration(position) * time.Second)
	if duration > 0 {
		t.end = t.start.Add(time.Duration(duration) * time.Second)
		t.estimated = false
	} else {
		t.end = t.start.Add(fallbackTrackLength)
		t.estimated = true
	}
	t.valid = true
	return true
}

// Clear drops the timer. Called while paused or stopped so the presence
// display shows no progress.
func (t *PresenceTimer) Clear() {
	t.valid = false
	t.estimated = false
}

// Valid reports whether a timestamp pair is currently held.
func (t *PresenceTimer) Valid() bool { return t.valid }

// Start returns the derived start timestamp.
func (t *PresenceTimer) Start() time.Time { return t.start }

// End returns the derived end timestamp.
func (t *PresenceTimer) End() time.Time { return t.end }
