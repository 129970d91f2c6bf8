package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trackwire/internal/store"
)

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// handleCreateSession handles POST /session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req store.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.App == "" {
		respondError(w, http.StatusBadRequest, "app is required")
		return
	}

	created, err := s.store.Create(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.hub.Broadcast(FeedEvent{Type: "session_created", Session: newSessionView(created, s.store.Now())})
	respondJSON(w, http.StatusOK, map[string]string{
		"sessionId": created.ID,
		"url":       s.publicBaseURL + "/session/" + created.ID,
	})
}

// handleUpdateSession handles PUT /session/{id}.
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req store.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.store.Update(id, req)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "unknown session")
		return
	case errors.Is(err, store.ErrSessionEnded):
		respondError(w, http.StatusGone, "session already ended")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "update failed")
		return
	}

	s.hub.Broadcast(FeedEvent{Type: "session_updated", Session: newSessionView(updated, s.store.Now())})
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": updated.ID,
	})
}

// handleEndSession handles DELETE /session/{id}. Ending an already-ended
// session returns 404.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ended, err := s.store.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown session")
		return
	}

	s.hub.Broadcast(FeedEvent{Type: "session_ended", Session: newSessionView(ended, s.store.Now())})
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": ended.ID,
	})
}

// handleGetSession handles GET /session/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(sess, s.store.Now()))
}

// handleActiveSessions handles GET /sessions/active.
func (s *Server) handleActiveSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.views(s.store.Active()))
}

// handleUserSessions handles GET /sessions/user/{id}.
func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.views(s.store.ByUser(r.PathValue("id"))))
}

func (s *Server) views(sessions []*store.Session) []SessionView {
	now := s.store.Now()
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, newSessionView(sess, now))
	}
	return out
}

// handleHistory handles GET /history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, s.store.History().List(limit))
}

// handleUserHistory handles GET /history/user/{id}.
func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.History().ByUser(r.PathValue("id")))
}

// handleClearHistory handles DELETE /history.
func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.store.History().Clear()
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleDeleteHistoryEntry handles DELETE /history/{trackId}.
func (s *Server) handleDeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if !s.store.History().Remove(r.PathValue("trackId")) {
		respondError(w, http.StatusNotFound, "unknown track")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptimeSeconds":  int(time.Since(s.started).Seconds()),
		"activeSessions": len(s.store.Active()),
		"totalSessions":  s.store.Count(),
		"historyTracks":  s.store.History().Len(),
	})
}

// handleFeed handles GET /ws, upgrading to the live session feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remoteAddr", r.RemoteAddr)
		return
	}

	c := newFeedClient(s.hub, conn)
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}
