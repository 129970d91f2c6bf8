// Package httpapi exposes the session store over REST plus a websocket feed
// that pushes session mutations to subscribers.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trackwire/internal/store"
)

// Server is the session store's HTTP frontend.
type Server struct {
	addr          string
	publicBaseURL string
	store         *store.Store
	hub           *Hub
	upgrader      websocket.Upgrader
	httpServer    *http.Server
	started       time.Time
	allowed       []string
}

// NewServer creates a fully configured server for the given store.
func NewServer(addr, publicBaseURL string, st *store.Store, allowedOrigins []string) *Server {
	s := &Server{
		addr:          addr,
		publicBaseURL: publicBaseURL,
		store:         st,
		hub:           NewHub(),
		started:       time.Now(),
		allowed:       allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Hub returns the server's feed hub. Callers that serve Routes without Run
// must start the hub themselves.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowed) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.allowed {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

// Routes builds the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", s.handleCreateSession)
	mux.HandleFunc("PUT /session/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /session/{id}", s.handleEndSession)
	mux.HandleFunc("GET /session/{id}", s.handleGetSession)

	mux.HandleFunc("GET /sessions/active", s.handleActiveSessions)
	mux.HandleFunc("GET /sessions/user/{id}", s.handleUserSessions)

	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /history/user/{id}", s.handleUserHistory)
	mux.HandleFunc("DELETE /history", s.handleClearHistory)
	mux.HandleFunc("DELETE /history/{trackId}", s.handleDeleteHistoryEntry)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleFeed)

	return s.corsMiddleware(mux)
}

// corsMiddleware adds CORS headers for the configured origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			if len(s.allowed) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the server and its hub, blocking until the context is
// cancelled and shutdown completes.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
	}()

	slog.Info("http server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	wg.Wait()
	return nil
}
