package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/summerlabs/notifai/internal/store"
)

// Notification is one dispatch request. Key is stable per message, so
// re-classifying the same message updates the existing notification instead
// of duplicating it.
type Notification struct {
	Key     string
	Channel ChannelID
	Title   string
	Body    string
}

// Sink delivers notifications to the platform notification surface.
type Sink interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the log. Used when no platform surface is
// attached (CLI runs, tests).
type LogSink struct {
	Logger *slog.Logger
}

// Dispatch logs the notification.
func (s *LogSink) Dispatch(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"key", n.Key,
		"channel", string(n.Channel),
		"title", n.Title,
		"body", n.Body)
	return nil
}

// Router decides whether and where a classified message is notified.
type Router struct {
	sink    Sink
	limiter *rate.Limiter
	logger  *slog.Logger

	// activeSession holds the sender id of the conversation open in the
	// foreground, 0 when none.
	activeSession atomic.Int64
}

// NewRouter creates a Router dispatching into sink. Dispatches are rate
// limited so a historical ingestion run cannot flood the sink.
func NewRouter(sink Sink) *Router {
	return &Router{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger.
func (r *Router) WithLogger(logger *slog.Logger) *Router {
	r.logger = logger
	return r
}

// SetActiveSession records the sender identity currently open in the
// foreground. Messages from that sender are not notified.
func (r *Router) SetActiveSession(senderID int64) {
	r.activeSession.Store(senderID)
}

// ClearActiveSession clears the foreground conversation.
func (r *Router) ClearActiveSession() {
	r.activeSession.Store(0)
}

// ActiveSession returns the current foreground sender id, 0 when none.
func (r *Router) ActiveSession() int64 {
	return r.activeSession.Load()
}

// OnMessageClassified routes one classified message. Skipped entirely when
// the message has no external id (not yet confirmed persisted) or when its
// sender is the active session; tiers 1-2 map to the suppressed channel.
func (r *Router) OnMessageClassified(ctx context.Context, msg *store.Message, sender *store.Sender) {
	if !msg.ExternalID.Valid {
		return
	}
	if sender.ID != 0 && sender.ID == r.activeSession.Load() {
		return
	}

	channel, ok := ChannelForTier(msg.ImportanceTier)
	if !ok {
		return
	}

	if !r.limiter.Allow() {
		r.logger.Debug("notification rate limited", "external_id", msg.ExternalID.Int64)
		return
	}

	title := sender.RawAddress
	if sender.DisplayName.Valid && sender.DisplayName.String != "" {
		title = sender.DisplayName.String
	}

	n := Notification{
		Key:     fmt.Sprintf("msg-%d", msg.ExternalID.Int64),
		Channel: channel,
		Title:   title,
		Body:    msg.Body,
	}
	if err := r.sink.Dispatch(ctx, n); err != nil {
		r.logger.Warn("notification dispatch failed", "key", n.Key, "error", err)
	}
}

// OnIngestProgress publishes the operational ingestion-progress notification
// on the processing channel. A fixed key keeps it to a single updating card.
func (r *Router) OnIngestProgress(ctx context.Context, processed, total int64) {
	n := Notification{
		Key:     "sms-processing",
		Channel: ChannelProcessing,
		Title:   "Syncing messages",
		Body:    fmt.Sprintf("%d/%d messages processed", processed, total),
	}
	if err := r.sink.Dispatch(ctx, n); err != nil {
		r.logger.Debug("progress notification failed", "error", err)
	}
}
