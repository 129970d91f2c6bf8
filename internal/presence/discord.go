package presence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hugolgst/rich-go/client"
)

const (
	maxConnectAttempts  = 5
	initialConnectDelay = 2 * time.Second
)

// Discord publishes rich presence over the local Discord IPC socket.
// A failed connection is retried with exponential backoff up to a bounded
// number of attempts; after that, publishing stays disabled until Reset is
// called. The host being down is reported once, not on every poll.
type Discord struct {
	appID string
	log   *slog.Logger

	mu        sync.Mutex
	connected bool
	attempts  int
	nextTry   time.Time
	notified  bool
}

// NewDiscord creates a Discord presence publisher for the given application
// id. No connection is made until the first Publish.
func NewDiscord(appID string, log *slog.Logger) *Discord {
	return &Discord{appID: appID, log: log}
}

// Publish sets the activity, connecting on demand.
func (d *Discord) Publish(u Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureConnected(); err != nil {
		return err
	}

	activity := client.Activity{
		Details:    u.Song,
		State:      u.Artist,
		LargeImage: u.ArtURL,
		LargeText:  u.ArtLabel,
	}
	if !u.Start.IsZero() {
		ts := &client.Timestamps{Start: &u.Start}
		if !u.End.IsZero() {
			ts.End = &u.End
		}
		activity.Timestamps = ts
	}
	if u.URL != "" {
		activity.Buttons = []*client.Button{{Label: "View Session", Url: u.URL}}
	}

	if err := client.SetActivity(activity); err != nil {
		// The socket likely died; force a reconnect on the next publish.
		d.connected = false
		return fmt.Errorf("setting presence activity: %w", err)
	}
	return nil
}

// Clear removes the presence display.
func (d *Discord) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	client.Logout()
	d.connected = false
	return nil
}

// Reset re-arms the connection backoff. The polling loop calls it when a
// media app starts, so a Discord launched after the attempts ran out gets
// picked up with the next listening session.
func (d *Discord) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = 0
	d.nextTry = time.Time{}
	d.notified = false
}

// ensureConnected must be called with d.mu held.
func (d *Discord) ensureConnected() error {
	if d.connected {
		return nil
	}
	if d.attempts >= maxConnectAttempts {
		return fmt.Errorf("presence host unreachable after %d attempts", maxConnectAttempts)
	}
	if now := time.Now(); now.Before(d.nextTry) {
		return fmt.Errorf("presence host unreachable, retrying later")
	}

	if err := client.Login(d.appID); err != nil {
		d.attempts++
		d.nextTry = time.Now().Add(initialConnectDelay << (d.attempts - 1))
		if !d.notified {
			d.log.Warn("presence host unavailable, is Discord running?", "error", err)
			d.notified = true
		}
		return fmt.Errorf("connecting to presence host: %w", err)
	}

	d.connected = true
	d.attempts = 0
	d.notified = false
	d.log.Info("connected to presence host")
	return nil
}
