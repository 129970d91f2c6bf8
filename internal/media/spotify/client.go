// Package spotify adapts the Spotify Web API into a media.Source.
package spotify

import (
	"context"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"trackwire/internal/media"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
)

// Source polls the user's currently playing track via the Spotify Web API.
// The underlying oauth2 token source refreshes access tokens automatically
// and is safe for concurrent use.
type Source struct {
	client spotify.Client
}

// NewSource creates a Spotify media source using the refresh token flow.
func NewSource(ctx context.Context, clientID, clientSecret, refreshToken string) *Source {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	token := &oauth2.Token{RefreshToken: refreshToken}
	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))

	return &Source{client: spotify.NewClient(httpClient)}
}

// Poll fetches the currently playing track and maps it into a Snapshot.
// Returns (nil, nil) when nothing is playing.
func (s *Source) Poll(ctx context.Context) (*media.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.client.PlayerCurrentlyPlaying()
	if err != nil {
		return nil, err
	}
	if current == nil || current.Item == nil {
		return nil, nil
	}

	names := make([]string, 0, len(current.Item.Artists))
	for _, a := range current.Item.Artists {
		names = append(names, a.Name)
	}

	snap := &media.Snapshot{
		Title:     current.Item.Name,
		Artist:    strings.Join(names, ", "),
		Album:     current.Item.Album.Name,
		Playing:   current.Playing,
		Position:  current.Progress / 1000,
		Duration:  current.Item.Duration / 1000,
		SourceApp: "Spotify",
	}
	return snap, nil
}
