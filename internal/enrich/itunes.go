// Package enrich looks up cleaned track metadata and artwork from the iTunes
// Search API. Lookups are best effort; on any failure the caller keeps the
// raw snapshot fields.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const searchURL = "https://itunes.apple.com/search"

// Metadata is the enrichment result. Zero-value fields mean "unknown"; the
// caller falls back to the raw snapshot values.
type Metadata struct {
	CleanedSong   string
	CleanedArtist string
	Album         string
	ArtURL        string
	Genre         string
	Year          string
	Label         string
	TrackCount    int
}

type searchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		TrackName        string `json:"trackName"`
		ArtistName       string `json:"artistName"`
		CollectionName   string `json:"collectionName"`
		ArtworkURL100    string `json:"artworkUrl100"`
		PrimaryGenreName string `json:"primaryGenreName"`
		ReleaseDate      string `json:"releaseDate"`
		TrackCount       int    `json:"trackCount"`
		Copyright        string `json:"copyright"`
	} `json:"results"`
}

// Client queries the iTunes Search API with a small artwork cache in front.
type Client struct {
	http *http.Client
	art  *artCache
}

// NewClient creates an enrichment client.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 8 * time.Second},
		art:  newArtCache(30),
	}
}

// Lookup fetches cleaned metadata for a track. Returns an error on any
// transport or decode failure; the zero Metadata is also valid when the
// catalog has no match.
func (c *Client) Lookup(ctx context.Context, song, artist, album string) (Metadata, error) {
	if art, ok := c.art.get(song, artist); ok {
		// A cached artwork hit still carries no extended fields; callers
		// that need those go through the network path on song change only.
		return Metadata{ArtURL: art}, nil
	}

	q := url.Values{}
	q.Set("term", strings.TrimSpace(song+" "+artist))
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return Metadata{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("itunes search returned %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Metadata{}, fmt.Errorf("decoding itunes response: %w", err)
	}
	if parsed.ResultCount == 0 || len(parsed.Results) == 0 {
		return Metadata{}, nil
	}

	r := parsed.Results[0]
	meta := Metadata{
		CleanedSong:   r.TrackName,
		CleanedArtist: r.ArtistName,
		Album:         r.CollectionName,
		ArtURL:        upscaleArtwork(r.ArtworkURL100),
		Genre:         r.PrimaryGenreName,
		Label:         r.Copyright,
		TrackCount:    r.TrackCount,
	}
	if len(r.ReleaseDate) >= 4 {
		meta.Year = r.ReleaseDate[:4]
	}
	if meta.ArtURL != "" {
		c.art.put(song, artist, meta.ArtURL)
	}
	return meta, nil
}

// upscaleArtwork swaps the 100x100 artwork variant for the 600x600 one.
func upscaleArtwork(artURL string) string {
	return strings.Replace(artURL, "100x100bb", "600x600bb", 1)
}
