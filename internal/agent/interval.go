package agent

import "time"

// PollState summarizes the loop's current cadence driver.
type PollState int

const (
	PollIdle    PollState = iota // no whitelisted app active
	PollWaiting                  // app active but only placeholder snapshots so far
	PollPaused
	PollPlaying
)

// Interval maps the poll state to the delay before the next iteration.
// Short while playing so the remote position stays in sync, longer while
// paused, longest while idle.
func Interval(s PollState) time.Duration {
	switch s {
	case PollPlaying:
		return 3 * time.Second
	case PollWaiting:
		return time.Second
	case PollPaused:
		return 15 * time.Second
	default:
		return 30 * time.Second
	}
}
