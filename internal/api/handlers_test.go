package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wesm/smsvault/internal/config"
	"github.com/wesm/smsvault/internal/query"
	"github.com/wesm/smsvault/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore implements MessageStore and records the arguments it was
// called with so handlers can be tested in isolation.
type mockStore struct {
	messages   []store.Message
	stats      *store.Stats
	failWith   error
	deleteOK   bool
	deletedAll int64

	lastFilter query.Filter
	lastPage   query.Page
	inserted   []store.Message
}

func (m *mockStore) Insert(ctx context.Context, msg store.Message) (*store.Message, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.inserted = append(m.inserted, msg)
	created := msg
	created.ID = int64(len(m.inserted))
	created.CreatedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &created, nil
}

func (m *mockStore) InsertMany(ctx context.Context, msgs []store.Message) ([]int64, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var ids []int64
	for _, msg := range msgs {
		m.inserted = append(m.inserted, msg)
		ids = append(ids, int64(len(m.inserted)))
	}
	return ids, nil
}

func (m *mockStore) Get(ctx context.Context, id int64) (*store.Message, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	for i := range m.messages {
		if m.messages[i].ID == id {
			return &m.messages[i], nil
		}
	}
	return nil, nil
}

func (m *mockStore) Delete(ctx context.Context, id int64) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	return m.deleteOK, nil
}

func (m *mockStore) DeleteAll(ctx context.Context) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.deletedAll, nil
}

func (m *mockStore) List(ctx context.Context, f query.Filter, p query.Page) ([]store.Message, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.lastFilter = f
	m.lastPage = p
	return m.messages, nil
}

func (m *mockStore) GetStats(ctx context.Context) (*store.Stats, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.stats, nil
}

func newTestServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()

	ms := &mockStore{
		messages: []store.Message{
			{
				ID:        1,
				Address:   "+15551234567",
				Body:      "Hello world",
				Date:      1700000000000,
				Read:      false,
				Type:      store.TypeReceived,
				CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			},
		},
		stats:    &store.Stats{Total: 10, Unread: 4, Received: 7, Sent: 3},
		deleteOK: true,
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			BindAddr:       "127.0.0.1",
			Port:           8000,
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
	}

	return NewServer(cfg, ms, testLogger()), ms
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalMessages != 10 || resp.UnreadMessages != 4 || resp.ReceivedMessages != 7 || resp.SentMessages != 3 {
		t.Errorf("stats = %+v, want {10 4 7 3}", resp)
	}
}

func TestHandleListMessagesDefaults(t *testing.T) {
	srv, ms := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if ms.lastPage.Limit != 100 || ms.lastPage.Offset != 0 {
		t.Errorf("page = %+v, want limit 100 offset 0", ms.lastPage)
	}
	if ms.lastFilter.Type != nil || ms.lastFilter.Unread != nil || ms.lastFilter.Search != "" {
		t.Errorf("filter = %+v, want empty", ms.lastFilter)
	}

	var resp []MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("got %d messages, want 1", len(resp))
	}
	if resp[0].Address != "+15551234567" || resp[0].Read {
		t.Errorf("message = %+v", resp[0])
	}
	if _, err := time.Parse(time.RFC3339, resp[0].CreatedAt); err != nil {
		t.Errorf("created_at %q is not RFC3339: %v", resp[0].CreatedAt, err)
	}
}

func TestHandleListMessagesFilters(t *testing.T) {
	srv, ms := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/messages?limit=5&offset=10&type=2&unread=true&search=milk", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if ms.lastPage.Limit != 5 || ms.lastPage.Offset != 10 {
		t.Errorf("page = %+v, want limit 5 offset 10", ms.lastPage)
	}
	if ms.lastFilter.Type == nil || *ms.lastFilter.Type != 2 {
		t.Errorf("filter type = %v, want 2", ms.lastFilter.Type)
	}
	if ms.lastFilter.Unread == nil || !*ms.lastFilter.Unread {
		t.Errorf("filter unread = %v, want true", ms.lastFilter.Unread)
	}
	if ms.lastFilter.Search != "milk" {
		t.Errorf("filter search = %q, want milk", ms.lastFilter.Search)
	}
}

func TestHandleListMessagesBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	paths := []string{
		"/api/messages?limit=0",
		"/api/messages?limit=-1",
		"/api/messages?limit=abc",
		"/api/messages?offset=-5",
		"/api/messages?type=3",
		"/api/messages?type=x",
		"/api/messages?unread=maybe",
	}
	for _, path := range paths {
		w := doRequest(t, srv, "GET", path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleGetMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/messages/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 || resp.Body != "Hello world" {
		t.Errorf("message = %+v", resp)
	}
}

func TestHandleGetMessageNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/messages/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleGetMessageBadID(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/messages/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleCreateMessage(t *testing.T) {
	srv, ms := newTestServer(t)

	date := int64(1700000000000)
	w := doRequest(t, srv, "POST", "/api/messages", CreateMessageRequest{
		Address: "+1",
		Body:    "hi",
		Date:    &date,
		Type:    intPtr(store.TypeReceived),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body)
	}

	var resp MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == 0 {
		t.Error("created message has no id")
	}
	if resp.Read {
		t.Error("read should default to false when omitted")
	}
	if len(ms.inserted) != 1 {
		t.Fatalf("store received %d inserts, want 1", len(ms.inserted))
	}
}

func TestHandleCreateMessageValidation(t *testing.T) {
	srv, ms := newTestServer(t)

	date := int64(1000)
	tests := []struct {
		name string
		req  CreateMessageRequest
	}{
		{"missing address", CreateMessageRequest{Body: "hi", Date: &date, Type: intPtr(1)}},
		{"missing body", CreateMessageRequest{Address: "+1", Date: &date, Type: intPtr(1)}},
		{"missing date", CreateMessageRequest{Address: "+1", Body: "hi", Type: intPtr(1)}},
		{"missing type", CreateMessageRequest{Address: "+1", Body: "hi", Date: &date}},
		{"type out of range", CreateMessageRequest{Address: "+1", Body: "hi", Date: &date, Type: intPtr(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, "POST", "/api/messages", tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}

	if len(ms.inserted) != 0 {
		t.Errorf("store received %d inserts from invalid requests, want 0", len(ms.inserted))
	}
}

func TestHandleCreateMessageMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/messages", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleCreateMessagesBulk(t *testing.T) {
	srv, ms := newTestServer(t)

	date := int64(1000)
	reqs := []CreateMessageRequest{
		{Address: "+1", Body: "a", Date: &date, Type: intPtr(1)},
		{Address: "+2", Body: "b", Date: &date, Type: intPtr(1)},
		{Address: "+3", Body: "c", Date: &date, Type: intPtr(2)},
	}

	w := doRequest(t, srv, "POST", "/api/messages/bulk", reqs)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body)
	}

	var resp BulkCreateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 3 || len(resp.IDs) != 3 {
		t.Errorf("bulk response = %+v, want count 3 with 3 ids", resp)
	}
	if len(ms.inserted) != 3 {
		t.Errorf("store received %d inserts, want 3", len(ms.inserted))
	}
}

func TestHandleCreateMessagesBulkAllOrNothing(t *testing.T) {
	srv, ms := newTestServer(t)

	date := int64(1000)
	reqs := []CreateMessageRequest{
		{Address: "+1", Body: "a", Date: &date, Type: intPtr(1)},
		{Address: "+2", Body: "b", Date: &date, Type: intPtr(5)}, // invalid type
	}

	w := doRequest(t, srv, "POST", "/api/messages/bulk", reqs)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(ms.inserted) != 0 {
		t.Errorf("store received %d inserts from a rejected batch, want 0", len(ms.inserted))
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	srv, ms := newTestServer(t)

	w := doRequest(t, srv, "DELETE", "/api/messages/1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	ms.deleteOK = false
	w = doRequest(t, srv, "DELETE", "/api/messages/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleDeleteAllMessages(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.deletedAll = 5

	w := doRequest(t, srv, "DELETE", "/api/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["count"] != float64(5) {
		t.Errorf("count = %v, want 5", resp["count"])
	}
}

func TestStoreErrorsReturn500(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.failWith = errors.New("disk on fire")

	paths := []struct {
		method, path string
	}{
		{"GET", "/api/messages"},
		{"GET", "/api/messages/1"},
		{"GET", "/api/stats"},
		{"DELETE", "/api/messages"},
		{"DELETE", "/api/messages/1"},
	}
	for _, p := range paths {
		w := doRequest(t, srv, p.method, p.path, nil)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want %d", p.method, p.path, w.Code, http.StatusInternalServerError)
		}
	}
}

func intPtr(i int) *int { return &i }
