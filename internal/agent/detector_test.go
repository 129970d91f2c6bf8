package agent

import (
	"testing"

	"trackwire/internal/media"
)

func snap(title, artist, app string, playing bool) *media.Snapshot {
	return &media.Snapshot{Title: title, Artist: artist, SourceApp: app, Playing: playing}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		prev *media.Snapshot
		cur  *media.Snapshot
		want []Transition
	}{
		{
			name: "nothing to nothing",
			want: nil,
		},
		{
			name: "app starts",
			cur:  snap("Paranoid Android", "Radiohead", "Spotify", true),
			want: []Transition{AppStarted},
		},
		{
			name: "app stops",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			want: []Transition{AppStopped},
		},
		{
			name: "app switches",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			cur:  snap("Paranoid Android", "Radiohead", "Tidal", true),
			want: []Transition{AppSwitched},
		},
		{
			name: "song changes",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			cur:  snap("Karma Police", "Radiohead", "Spotify", true),
			want: []Transition{SongChanged},
		},
		{
			name: "pause",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			cur:  snap("Paranoid Android", "Radiohead", "Spotify", false),
			want: []Transition{PlayStateChanged},
		},
		{
			name: "song change and resume together",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", false),
			cur:  snap("Karma Police", "Radiohead", "Spotify", true),
			want: []Transition{SongChanged, PlayStateChanged},
		},
		{
			name: "same song ticking forward is a heartbeat",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			cur:  snap("Paranoid Android", "Radiohead", "Spotify", true),
			want: []Transition{Heartbeat},
		},
		{
			name: "case and whitespace changes are not a song change",
			prev: snap("Paranoid Android", "Radiohead", "Spotify", true),
			cur:  snap("  PARANOID ANDROID ", "radiohead", "Spotify", true),
			want: []Transition{Heartbeat},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.prev, tc.cur)
			if len(got) != len(tc.want) {
				t.Fatalf("Detect() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Detect() = %v, want %v", got, tc.want)
				}
			}
		})
	}
}
