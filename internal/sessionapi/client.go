// Package sessionapi is the HTTP client for the remote session store.
// All mutating calls report explicit results instead of raising; the polling
// loop logs failures and moves on.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CreateRequest is the body for POST /session. The full known state is sent
// at creation time.
type CreateRequest struct {
	App              string `json:"app"`
	Song             string `json:"song,omitempty"`
	Artist           string `json:"artist,omitempty"`
	Album            string `json:"album,omitempty"`
	AlbumArt         string `json:"albumArt,omitempty"`
	Duration         int    `json:"duration,omitempty"`
	Position         int    `json:"position,omitempty"`
	Playing          bool   `json:"playing"`
	User             string `json:"user,omitempty"`
	Genre            string `json:"genre,omitempty"`
	Year             string `json:"year,omitempty"`
	Label            string `json:"label,omitempty"`
	TrackCount       int    `json:"trackCount,omitempty"`
	AlbumDescription string `json:"albumDescription,omitempty"`
	ArtistBio        string `json:"artistBio,omitempty"`
	ArtistImage      string `json:"artistImage,omitempty"`
}

// CreateResponse is the body of a successful POST /session.
type CreateResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// UpdateRequest is the body for PUT /session/:id. Nil fields are left
// unchanged by the server (partial update semantics).
type UpdateRequest struct {
	Song             *string `json:"song,omitempty"`
	Artist           *string `json:"artist,omitempty"`
	Album            *string `json:"album,omitempty"`
	AlbumArt         *string `json:"albumArt,omitempty"`
	Duration         *int    `json:"duration,omitempty"`
	Position         *int    `json:"position,omitempty"`
	Playing          *bool   `json:"playing,omitempty"`
	Genre            *string `json:"genre,omitempty"`
	Year             *string `json:"year,omitempty"`
	Label            *string `json:"label,omitempty"`
	TrackCount       *int    `json:"trackCount,omitempty"`
	AlbumDescription *string `json:"albumDescription,omitempty"`
	ArtistBio        *string `json:"artistBio,omitempty"`
	ArtistImage      *string `json:"artistImage,omitempty"`
}

// Result is the explicit outcome of a fire-and-forget store call.
type Result struct {
	Status int
	Err    error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// Gone reports whether the remote session was evicted underneath us. The
// caller silently drops its session id; a later transition recreates it.
func (r Result) Gone() bool {
	return r.Status == http.StatusNotFound || r.Status == http.StatusGone
}

// Client talks to the session store REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Create opens a new session and returns its id and public URL.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create session returned %d", resp.StatusCode)
	}

	var created CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding create response: %w", err)
	}
	return &created, nil
}

// Update sends a partial update to an existing session.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) Result {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{Err: err}
	}
	return c.do(ctx, http.MethodPut, "/session/"+id, bytes.NewReader(body))
}

// End marks the session inactive.
func (c *Client) End(ctx context.Context, id string) Result {
	return c.do(ctx, http.MethodDelete, "/session/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) Result {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Result{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer drain(resp.Body)

	res := Result{Status: resp.StatusCode}
	if !res.OK() && !res.Gone() {
		res.Err = fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode)
	}
	return res
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
