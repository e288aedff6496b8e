package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wesm/smsvault/internal/query"
	"github.com/wesm/smsvault/internal/store"
)

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Address   string `json:"address"`
	Body      string `json:"body"`
	Date      int64  `json:"date"`
	Read      bool   `json:"read"`
	Type      int    `json:"type"`
	CreatedAt string `json:"created_at"`
}

// CreateMessageRequest represents an incoming message. Pointer fields
// distinguish absent values from zero values: date and type are required,
// read defaults to false when omitted.
type CreateMessageRequest struct {
	Address string `json:"address"`
	Body    string `json:"body"`
	Date    *int64 `json:"date"`
	Read    *bool  `json:"read"`
	Type    *int   `json:"type"`
}

// StatsResponse represents the aggregate message counts.
type StatsResponse struct {
	TotalMessages    int64 `json:"total_messages"`
	UnreadMessages   int64 `json:"unread_messages"`
	ReceivedMessages int64 `json:"received_messages"`
	SentMessages     int64 `json:"sent_messages"`
}

// BulkCreateResponse summarizes a bulk insert.
type BulkCreateResponse struct {
	Message string  `json:"message"`
	Count   int     `json:"count"`
	IDs     []int64 `json:"ids"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

func toMessageResponse(m store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Address:   m.Address,
		Body:      m.Body,
		Date:      m.Date,
		Read:      m.Read,
		Type:      m.Type,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toStoreMessage validates the request shape and applies input defaults.
func (req *CreateMessageRequest) toStoreMessage() (store.Message, error) {
	var m store.Message
	if req.Address == "" {
		return m, &store.ValidationError{Field: "address", Reason: "is required"}
	}
	if req.Body == "" {
		return m, &store.ValidationError{Field: "body", Reason: "is required"}
	}
	if req.Date == nil {
		return m, &store.ValidationError{Field: "date", Reason: "is required"}
	}
	if req.Type == nil {
		return m, &store.ValidationError{Field: "type", Reason: "is required"}
	}

	m = store.Message{
		Address: req.Address,
		Body:    req.Body,
		Date:    *req.Date,
		Type:    *req.Type,
	}
	if req.Read != nil {
		m.Read = *req.Read
	}
	return m, m.Validate()
}

// parseListParams builds the filter and page from query parameters,
// applying the documented defaults.
func parseListParams(r *http.Request) (query.Filter, query.Page, error) {
	f := query.Filter{}
	p := query.DefaultPage()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return f, p, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return f, p, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = offset
	}
	if v := q.Get("type"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil || (t != store.TypeReceived && t != store.TypeSent) {
			return f, p, fmt.Errorf("type must be 1 (received) or 2 (sent)")
		}
		f.Type = &t
	}
	if v := q.Get("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			return f, p, fmt.Errorf("unread must be a boolean")
		}
		f.Unread = &unread
	}
	f.Search = q.Get("search")

	return f, p, nil
}

// handleListMessages returns messages matching the query parameters,
// newest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	messages, err := s.store.List(r.Context(), filter, page)
	if err != nil {
		s.logger.Error("failed to list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve messages")
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i, m := range messages {
		resp[i] = toMessageResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetMessage returns a single message by ID.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Message ID must be a number")
		return
	}

	msg, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve message")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "not_found", "Message not found")
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(*msg))
}

// handleCreateMessage stores a single message.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON message object")
		return
	}

	m, err := req.toStoreMessage()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	created, err := s.store.Insert(r.Context(), m)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		s.logger.Error("failed to create message", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to store message")
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(*created))
}

// handleCreateMessagesBulk stores a batch of messages in one transaction.
// The batch is all-or-nothing: one invalid record rejects the whole request.
func (s *Server) handleCreateMessagesBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON array of message objects")
		return
	}

	msgs := make([]store.Message, len(reqs))
	for i := range reqs {
		m, err := reqs[i].toStoreMessage()
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error",
				fmt.Sprintf("message %d: %s", i, err))
			return
		}
		msgs[i] = m
	}

	ids, err := s.store.InsertMany(r.Context(), msgs)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		s.logger.Error("failed to bulk create messages", "count", len(msgs), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to store messages")
		return
	}

	writeJSON(w, http.StatusCreated, BulkCreateResponse{
		Message: fmt.Sprintf("Successfully stored %d messages", len(ids)),
		Count:   len(ids),
		IDs:     ids,
	})
}

// handleDeleteMessage deletes a single message by ID.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Message ID must be a number")
		return
	}

	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to delete message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete message")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found", "Message not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

// handleDeleteAllMessages removes every stored message.
func (s *Server) handleDeleteAllMessages(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.DeleteAll(r.Context())
	if err != nil {
		s.logger.Error("failed to delete all messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All messages deleted successfully",
		"count":   count,
	})
}

// handleStats returns the aggregate message counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("failed to get stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalMessages:    stats.Total,
		UnreadMessages:   stats.Unread,
		ReceivedMessages: stats.Received,
		SentMessages:     stats.Sent,
	})
}
