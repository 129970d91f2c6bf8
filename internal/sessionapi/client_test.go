package sessionapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackwire/internal/sessionapi"
)

func TestCreateDecodesResponse(t *testing.T) {
	var gotBody sessionapi.CreateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/session" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sessionId": "abc-123",
			"url":       "http://sessions.test/session/abc-123",
		})
	}))
	defer ts.Close()

	client := sessionapi.NewClient(ts.URL)
	created, err := client.Create(context.Background(), sessionapi.CreateRequest{
		App:     "Spotify",
		Song:    "Paranoid Android",
		Artist:  "Radiohead",
		Playing: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.SessionID != "abc-123" {
		t.Errorf("sessionId = %q, want abc-123", created.SessionID)
	}
	if gotBody.App != "Spotify" || gotBody.Song != "Paranoid Android" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestCreateErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer ts.Close()

	if _, err := sessionapi.NewClient(ts.URL).Create(context.Background(), sessionapi.CreateRequest{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestUpdateResultMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantOK   bool
		wantGone bool
	}{
		{"success", http.StatusOK, true, false},
		{"evicted", http.StatusNotFound, false, true},
		{"ended", http.StatusGone, false, true},
		{"server error", http.StatusInternalServerError, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			res := sessionapi.NewClient(ts.URL).Update(context.Background(), "id", sessionapi.UpdateRequest{})
			if res.OK() != tc.wantOK {
				t.Errorf("OK() = %v, want %v", res.OK(), tc.wantOK)
			}
			if res.Gone() != tc.wantGone {
				t.Errorf("Gone() = %v, want %v", res.Gone(), tc.wantGone)
			}
			// Eviction is not an error condition for the caller.
			if tc.wantGone && res.Err != nil {
				t.Errorf("gone result carries error: %v", res.Err)
			}
		})
	}
}

func TestUpdateOmitsAbsentFields(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	playing := false
	res := sessionapi.NewClient(ts.URL).Update(context.Background(), "id", sessionapi.UpdateRequest{
		Playing: &playing,
	})
	if !res.OK() {
		t.Fatalf("update failed: %+v", res)
	}

	if _, present := raw["song"]; present {
		t.Error("absent song field was serialized")
	}
	if v, present := raw["playing"]; !present || v != false {
		t.Errorf("playing = %v (present=%v), want explicit false", v, present)
	}
}

func TestEndTransportFailure(t *testing.T) {
	client := sessionapi.NewClient("http://127.0.0.1:1")
	res := client.End(context.Background(), "id")
	if res.OK() || res.Err == nil {
		t.Fatalf("expected transport error, got %+v", res)
	}
}
