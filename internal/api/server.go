// Package api provides the HTTP API the UI layer polls for progress and
// paged message data.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/summerlabs/notifai/internal/pipeline"
	"github.com/summerlabs/notifai/internal/store"
)

// MessageStore defines the store operations the API needs.
type MessageStore interface {
	ListSenders(filter store.SenderFilter, limit, offset int) ([]store.SenderSummary, error)
	ListMessagesForSender(senderID int64, limit, offset int) ([]store.Message, error)
	ApplyStatusUpdate(u store.StatusUpdate) error
	UnreadCounts() (map[int64]int64, error)
	MarkSenderRead(senderID int64) error
	GetStats() (*store.Stats, error)
}

// RunManager defines the pipeline operations the API needs.
type RunManager interface {
	Trigger(jobName string) (*pipeline.RunTicket, error)
	Cancel(jobName string) bool
	Status(jobName string) (pipeline.Snapshot, error)
}

// SessionTracker tracks the conversation open in the foreground.
type SessionTracker interface {
	SetActiveSession(senderID int64)
	ClearActiveSession()
}

// Server is the HTTP API server.
type Server struct {
	store    MessageStore
	runs     RunManager
	sessions SessionTracker
	logger   *slog.Logger
	router   chi.Router
	server   *http.Server
}

// NewServer creates an API server on the given port.
func NewServer(port int, st MessageStore, runs RunManager, sessions SessionTracker, logger *slog.Logger) *Server {
	s := &Server{
		store:    st,
		runs:     runs,
		sessions: sessions,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs/{name}/status", s.handleJobStatus)
		r.Post("/jobs/{name}/runs", s.handleTriggerRun)
		r.Delete("/jobs/{name}/runs", s.handleCancelRun)

		r.Get("/senders", s.handleListSenders)
		r.Get("/senders/{id}/messages", s.handleListMessages)
		r.Post("/senders/{id}/read", s.handleMarkRead)

		r.Post("/messages/status", s.handleStatusUpdate)
		r.Get("/unread", s.handleUnread)
		r.Get("/stats", s.handleStats)

		r.Put("/session/{id}", s.handleSetSession)
		r.Delete("/session", s.handleClearSession)
	})

	s.router = r
	s.server = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
