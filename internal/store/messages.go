package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wesm/smsvault/internal/query"
)

// Message type values. The enum is exhaustive: every stored record is
// either received or sent.
const (
	TypeReceived = 1
	TypeSent     = 2
)

// Message represents a single SMS record.
// ID and CreatedAt are assigned by the store on insert and never change;
// Date is the caller-supplied epoch-milliseconds timestamp of the message.
type Message struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Body      string    `json:"body"`
	Date      int64     `json:"date"`
	Read      bool      `json:"read"`
	Type      int       `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationError reports a missing or malformed message field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

// Validate checks the fields a message must carry before it can be stored.
func (m *Message) Validate() error {
	if m.Address == "" {
		return &ValidationError{Field: "address", Reason: "must not be empty"}
	}
	if m.Body == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if m.Type != TypeReceived && m.Type != TypeSent {
		return &ValidationError{Field: "type", Reason: "must be 1 (received) or 2 (sent)"}
	}
	return nil
}

// Insert stores a new message and returns it with the server-assigned
// id and created_at.
func (s *Store) Insert(ctx context.Context, m Message) (*Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sms_messages (address, body, date, read, type)
		VALUES (?, ?, ?, ?, ?)
	`, m.Address, m.Body, m.Date, m.Read, m.Type)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert message id: %w", err)
	}

	// Re-read so the returned record carries the store-assigned created_at.
	created, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("inserted message %d not found", id)
	}
	return created, nil
}

// InsertMany stores a batch of messages in a single transaction and returns
// the assigned ids in input order. The batch is all-or-nothing: every
// message is validated before the transaction starts, and any storage
// error rolls the whole batch back.
func (s *Store) InsertMany(ctx context.Context, msgs []Message) ([]int64, error) {
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	ids := make([]int64, 0, len(msgs))
	err := s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sms_messages (address, body, date, read, type)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare bulk insert: %w", err)
		}
		defer stmt.Close()

		for i := range msgs {
			m := &msgs[i]
			res, err := stmt.ExecContext(ctx, m.Address, m.Body, m.Date, m.Read, m.Type)
			if err != nil {
				return fmt.Errorf("insert message %d: %w", i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert message %d id: %w", i, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Get returns a single message by id, or nil if no such record exists.
func (s *Store) Get(ctx context.Context, id int64) (*Message, error) {
	var m Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, address, body, date, read, type, created_at
		FROM sms_messages WHERE id = ?
	`, id).Scan(&m.ID, &m.Address, &m.Body, &m.Date, &m.Read, &m.Type, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return &m, nil
}

// Delete removes a message by id. It reports whether a record existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sms_messages WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete message %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete message %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteAll removes every message and returns the number deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sms_messages")
	if err != nil {
		return 0, fmt.Errorf("delete all messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all messages: %w", err)
	}
	return n, nil
}

// List returns messages matching the filter, newest first, bounded by page.
func (s *Store) List(ctx context.Context, f query.Filter, p query.Page) ([]Message, error) {
	where, args := f.Where()
	q := fmt.Sprintf(`
		SELECT id, address, body, date, read, type, created_at
		FROM sms_messages
		WHERE %s
		%s
		LIMIT ? OFFSET ?
	`, where, query.OrderBy)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Address, &m.Body, &m.Date, &m.Read, &m.Type, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Count returns the number of messages matching the filter.
func (s *Store) Count(ctx context.Context, f query.Filter) (int64, error) {
	where, args := f.Where()
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM sms_messages WHERE %s", where),
		args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Stats holds the aggregate message counts.
type Stats struct {
	Total    int64
	Unread   int64
	Received int64
	Sent     int64
}

// GetStats computes all four counts in a single statement so the result
// reflects one consistent snapshot of the table.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 2 THEN 1 ELSE 0 END), 0)
		FROM sms_messages
	`).Scan(&stats.Total, &stats.Unread, &stats.Received, &stats.Sent)
	if err != nil {
		if isSQLiteError(err, "no such table") {
			return stats, nil
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}
