package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/summerlabs/notifai/internal/store"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// handleJobStatus serves the progress wire contract for a job:
// {"status": LOADING|SUCCESS|ERROR, "processed": n, "total": n,
// "errorMessage": "..."} with errorMessage present only on ERROR.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.runs.Status(name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Data())
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ticket, err := s.runs.Trigger(name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job":        ticket.JobName,
		"generation": ticket.Generation,
	})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cancelled := s.runs.Cancel(name)
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type senderJSON struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Address     string `json:"address"`
	SenderType  string `json:"sender_type"`
	LastBody    string `json:"last_body"`
	LastDateMs  int64  `json:"last_date_ms"`
	LastTier    int    `json:"last_tier"`
	Unread      int64  `json:"unread"`
}

func (s *Server) handleListSenders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	filter := store.SenderFilterAll
	if r.URL.Query().Get("filter") == "important" {
		filter = store.SenderFilterImportant
	}

	summaries, err := s.store.ListSenders(filter, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]senderJSON, 0, len(summaries))
	for _, sum := range summaries {
		sj := senderJSON{
			ID:         sum.ID,
			Address:    sum.RawAddress,
			SenderType: string(sum.SenderType),
			LastBody:   sum.LastMessageBody,
			LastDateMs: sum.LastMessageMs,
			LastTier:   sum.LastTier,
			Unread:     sum.UnreadCount,
		}
		if sum.DisplayName.Valid {
			sj.DisplayName = sum.DisplayName.String
		}
		out = append(out, sj)
	}
	s.writeJSON(w, http.StatusOK, out)
}

type messageJSON struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	Body       string `json:"body"`
	DateMs     int64  `json:"date_ms"`
	Tier       int    `json:"importance_tier"`
	Status     *int64 `json:"delivery_status,omitempty"`
	ExternalID *int64 `json:"external_id,omitempty"`
	Direction  string `json:"direction"`
	IsRead     bool   `json:"is_read"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sender id")
		return
	}
	limit, offset := pageParams(r)

	messages, err := s.store.ListMessagesForSender(id, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		mj := messageJSON{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Body:      m.Body,
			DateMs:    m.DateMs,
			Tier:      m.ImportanceTier,
			Direction: string(m.Direction),
			IsRead:    m.IsRead,
		}
		if m.DeliveryStatus.Valid {
			v := m.DeliveryStatus.Int64
			mj.Status = &v
		}
		if m.ExternalID.Valid {
			v := m.ExternalID.Int64
			mj.ExternalID = &v
		}
		out = append(out, mj)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sender id")
		return
	}
	if err := s.store.MarkSenderRead(id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStatusUpdate applies the status-only projection: only the delivery
// status column of the addressed message changes.
func (s *Server) handleStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var u struct {
		ID     int64 `json:"id"`
		Status *int  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.store.ApplyStatusUpdate(store.StatusUpdate{ID: u.ID, Status: u.Status}); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.UnreadCounts()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string]int64, len(counts))
	for id, n := range counts {
		out[strconv.FormatInt(id, 10)] = n
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{
		"senders":       stats.SenderCount,
		"messages":      stats.MessageCount,
		"unread":        stats.UnreadCount,
		"runs":          stats.RunCount,
		"database_size": stats.DatabaseSize,
	})
}

func (s *Server) handleSetSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sender id")
		return
	}
	s.sessions.SetActiveSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearActiveSession()
	w.WriteHeader(http.StatusNoContent)
}
