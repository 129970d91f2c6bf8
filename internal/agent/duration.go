package agent

import "time"

const durationRetries = 3

// DurationResolver works around media APIs that transiently report a zero
// duration during valid playback. A zero read is retried with increasing
// backoff; if it stays zero, the last nonzero duration seen this playback
// session is substituted. A resolved zero means "unknown", never "instant
// track".
type DurationResolver struct {
	lastKnown int
	sleep     func(time.Duration)
}

// NewDurationResolver returns a resolver using real sleeps between retries.
func NewDurationResolver() *DurationResolver {
	return &DurationResolver{sleep: time.Sleep}
}

// Resolve reads the duration via read, retrying zeros up to three times with
// 100/200/300ms backoff, then falls back to the cached last known value.
func (r *DurationResolver) Resolve(read func() int) int {
	d := read()
	for attempt := 1; attempt <= durationRetries && d == 0; attempt++ {
		r.sleep(time.Duration(attempt) * 100 * time.Millisecond)
		d = read()
	}
	if d > 0 {
		r.lastKnown = d
		return d
	}
	return r.lastKnown
}

// Reset clears the cached duration. Called when playback fully stops.
func (r *DurationResolver) Reset() {
	r.lastKnown = 0
}
