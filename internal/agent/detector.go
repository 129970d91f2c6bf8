package agent

import "trackwire/internal/media"

// Transition classifies what changed between two successive snapshots.
type Transition int

const (
	AppStarted Transition = iota
	AppStopped
	AppSwitched
	SongChanged
	PlayStateChanged
	Heartbeat
)

// String returns a human-readable transition name.
func (t Transition) String() string {
	switch t {
	case AppStarted:
		return "app_started"
	case AppStopped:
		return "app_stopped"
	case AppSwitched:
		return "app_switched"
	case SongChanged:
		return "song_changed"
	case PlayStateChanged:
		return "play_state_changed"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Detect compares the previous and current snapshots and returns the
// transitions that fired, ordered by priority: app lifecycle first, then
// song change, then play state, else a lone heartbeat. Either snapshot may
// be nil, meaning no active app at that point. Invalid snapshots must be
// filtered out by the caller before detection.
func Detect(prev, cur *media.Snapshot) []Transition {
	switch {
	case prev == nil && cur == nil:
		return nil
	case prev == nil:
		return []Transition{AppStarted}
	case cur == nil:
		return []Transition{AppStopped}
	}

	if prev.SourceApp != cur.SourceApp {
		// An app switch subsumes the stop of the old app and the start of
		// the new one; the caller applies end-of-session effects first.
		return []Transition{AppSwitched}
	}

	var out []Transition
	if prev.Identity() != cur.Identity() {
		out = append(out, SongChanged)
	}
	if prev.Playing != cur.Playing {
		out = append(out, PlayStateChanged)
	}
	if len(out) == 0 {
		out = append(out, Heartbeat)
	}
	return out
}
