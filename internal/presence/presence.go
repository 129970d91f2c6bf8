// Package presence publishes the current track to an external rich-presence
// display. Publishing is best effort: failures are reported to the caller as
// values, never panics, and the polling loop treats them as log-only.
package presence

import "time"

// Update carries everything the presence display shows for one track.
type Update struct {
	Song     string
	Artist   string
	ArtURL   string
	ArtLabel string
	Start    time.Time
	End      time.Time // zero means no end timestamp
	URL      string    // public session page link
}

// Publisher pushes track updates to a rich-presence protocol. Reset re-arms
// a publisher whose connection retries ran out; callers invoke it when a new
// listening context begins.
type Publisher interface {
	Publish(u Update) error
	Clear() error
	Reset()
}
