package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/summerlabs/notifai/internal/pipeline"
	"github.com/summerlabs/notifai/internal/store"
)

func sqlInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

type fakeRuns struct {
	snapshot  pipeline.Snapshot
	triggered []string
	cancelled []string
}

func (f *fakeRuns) Trigger(jobName string) (*pipeline.RunTicket, error) {
	f.triggered = append(f.triggered, jobName)
	return &pipeline.RunTicket{JobName: jobName, Generation: int64(len(f.triggered))}, nil
}

func (f *fakeRuns) Cancel(jobName string) bool {
	f.cancelled = append(f.cancelled, jobName)
	return true
}

func (f *fakeRuns) Status(jobName string) (pipeline.Snapshot, error) {
	return f.snapshot, nil
}

type fakeSessions struct {
	active int64
}

func (f *fakeSessions) SetActiveSession(senderID int64) { f.active = senderID }
func (f *fakeSessions) ClearActiveSession()             { f.active = 0 }

func newTestServer(t *testing.T, runs *fakeRuns) (*Server, *store.Store, *fakeSessions) {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	sessions := &fakeSessions{}
	srv := NewServer(0, s, runs, sessions, slog.Default())
	return srv, s, sessions
}

func doJSON(t *testing.T, h http.Handler, method, path string, body []byte, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func TestJobStatusWireContract(t *testing.T) {
	runs := &fakeRuns{snapshot: pipeline.Snapshot{
		Status:       pipeline.StatusError,
		Processed:    250,
		Total:        1000,
		ErrorMessage: "SMS access permission is required",
	}}
	srv, _, _ := newTestServer(t, runs)

	var got map[string]any
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/jobs/sms-ingest/status", nil, &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	want := map[string]any{
		"status":       "ERROR",
		"processed":    float64(250),
		"total":        float64(1000),
		"errorMessage": "SMS access permission is required",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestJobStatusOmitsErrorMessageOutsideError(t *testing.T) {
	runs := &fakeRuns{snapshot: pipeline.Snapshot{
		Status: pipeline.StatusSuccess, Processed: 10, Total: 10,
	}}
	srv, _, _ := newTestServer(t, runs)

	var got map[string]any
	doJSON(t, srv.Router(), http.MethodGet, "/api/jobs/sms-ingest/status", nil, &got)
	if _, ok := got["errorMessage"]; ok {
		t.Error("errorMessage present on SUCCESS payload")
	}
}

func TestTriggerAndCancelRun(t *testing.T) {
	runs := &fakeRuns{}
	srv, _, _ := newTestServer(t, runs)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/jobs/nightly/runs", nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d", rec.Code)
	}
	if len(runs.triggered) != 1 || runs.triggered[0] != "nightly" {
		t.Errorf("triggered = %v", runs.triggered)
	}

	rec = doJSON(t, srv.Router(), http.MethodDelete, "/api/jobs/nightly/runs", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if len(runs.cancelled) != 1 || runs.cancelled[0] != "nightly" {
		t.Errorf("cancelled = %v", runs.cancelled)
	}
}

func seedConversation(t *testing.T, s *store.Store) (*store.Sender, []int64) {
	t.Helper()
	sender, err := s.EnsureSender("+15551234567", "+15551234567", store.SenderTypeContact)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	var ids []int64
	for i := int64(1); i <= 3; i++ {
		id, err := s.UpsertMessage(&store.Message{
			SenderID:       sender.ID,
			Body:           fmt.Sprintf("message %d", i),
			DateMs:         1000 * i,
			ImportanceTier: 3,
			ExternalID:     sqlInt(i),
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		ids = append(ids, id)
	}
	return sender, ids
}

func TestSendersAndMessagesEndpoints(t *testing.T) {
	srv, s, _ := newTestServer(t, &fakeRuns{})
	sender, _ := seedConversation(t, s)

	var senders []map[string]any
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/senders", nil, &senders)
	if rec.Code != http.StatusOK {
		t.Fatalf("senders status = %d", rec.Code)
	}
	if len(senders) != 1 {
		t.Fatalf("senders = %d, want 1", len(senders))
	}
	if senders[0]["unread"] != float64(3) {
		t.Errorf("unread = %v, want 3", senders[0]["unread"])
	}

	var messages []map[string]any
	path := fmt.Sprintf("/api/senders/%d/messages?limit=2", sender.ID)
	rec = doJSON(t, srv.Router(), http.MethodGet, path, nil, &messages)
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rec.Code)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2 (limit)", len(messages))
	}
	if messages[0]["body"] != "message 3" {
		t.Errorf("first message = %v, want newest first", messages[0]["body"])
	}
}

func TestMarkReadAndUnreadEndpoints(t *testing.T) {
	srv, s, _ := newTestServer(t, &fakeRuns{})
	sender, _ := seedConversation(t, s)

	var unread map[string]int64
	doJSON(t, srv.Router(), http.MethodGet, "/api/unread", nil, &unread)
	key := fmt.Sprintf("%d", sender.ID)
	if unread[key] != 3 {
		t.Errorf("unread = %v, want 3 for sender %s", unread, key)
	}

	rec := doJSON(t, srv.Router(), http.MethodPost, fmt.Sprintf("/api/senders/%d/read", sender.ID), nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read status = %d", rec.Code)
	}

	unread = nil
	doJSON(t, srv.Router(), http.MethodGet, "/api/unread", nil, &unread)
	if len(unread) != 0 {
		t.Errorf("unread after mark-read = %v, want empty", unread)
	}
}

func TestStatusUpdateEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t, &fakeRuns{})
	_, ids := seedConversation(t, s)

	body := []byte(fmt.Sprintf(`{"id": %d, "status": 32}`, ids[0]))
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/messages/status", body, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status update = %d (body %s)", rec.Code, rec.Body.String())
	}

	msg, err := s.GetMessage(ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !msg.DeliveryStatus.Valid || msg.DeliveryStatus.Int64 != 32 {
		t.Errorf("delivery status = %+v, want 32", msg.DeliveryStatus)
	}
	if msg.Body != "message 1" {
		t.Errorf("body changed by status update: %q", msg.Body)
	}

	rec = doJSON(t, srv.Router(), http.MethodPost, "/api/messages/status", []byte("not json"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, _, sessions := newTestServer(t, &fakeRuns{})

	rec := doJSON(t, srv.Router(), http.MethodPut, "/api/session/42", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set session = %d", rec.Code)
	}
	if sessions.active != 42 {
		t.Errorf("active session = %d, want 42", sessions.active)
	}

	rec = doJSON(t, srv.Router(), http.MethodDelete, "/api/session", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear session = %d", rec.Code)
	}
	if sessions.active != 0 {
		t.Errorf("active session = %d, want 0", sessions.active)
	}
}
