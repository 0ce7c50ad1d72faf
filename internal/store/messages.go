package store

import (
	"database/sql"
	"fmt"
)

// Direction records whether a message was received or sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message represents a classified message in the store.
type Message struct {
	ID             int64
	SenderID       int64
	Body           string
	DateMs         int64
	ImportanceTier int
	DeliveryStatus sql.NullInt64
	ExternalID     sql.NullInt64
	Direction      Direction
	IsRead         bool
}

// StatusUpdate is the lightweight status-only projection. Applying it
// touches delivery_status and nothing else, so derived state keyed on the
// other columns stays valid.
type StatusUpdate struct {
	ID     int64
	Status *int
}

// UpsertMessage inserts a message, or updates the existing row when the
// external id is already known. Re-ingesting a device record only refreshes
// the delivery status and read flag; body, date, tier, and sender are kept
// from the first ingestion.
func (s *Store) UpsertMessage(msg *Message) (int64, error) {
	if msg.Direction == "" {
		msg.Direction = DirectionInbound
	}

	result, err := s.db.Exec(`
		INSERT INTO messages (
			sender_id, body, date_ms, importance_tier,
			delivery_status, external_id, direction, is_read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) WHERE external_id IS NOT NULL DO UPDATE SET
			delivery_status = excluded.delivery_status,
			is_read = excluded.is_read
	`, msg.SenderID, msg.Body, msg.DateMs, msg.ImportanceTier,
		msg.DeliveryStatus, msg.ExternalID, msg.Direction, msg.IsRead)
	if err != nil {
		return 0, err
	}

	// last_insert_rowid is stale when the conflict branch ran, so the row id
	// is resolved through the external id whenever one is present.
	if msg.ExternalID.Valid {
		var id int64
		err = s.db.QueryRow(`
			SELECT id FROM messages WHERE external_id = ?
		`, msg.ExternalID.Int64).Scan(&id)
		if err != nil {
			return 0, err
		}
		return id, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("upsert message: no row id")
	}
	return id, nil
}

// GetMessage returns a message by ID, or nil if it does not exist.
func (s *Store) GetMessage(id int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT id, sender_id, body, date_ms, importance_tier,
		       delivery_status, external_id, direction, is_read
		FROM messages WHERE id = ?
	`, id)
	return scanMessage(row)
}

// GetMessageByExternalID returns a message by device-native id, or nil.
func (s *Store) GetMessageByExternalID(externalID int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT id, sender_id, body, date_ms, importance_tier,
		       delivery_status, external_id, direction, is_read
		FROM messages WHERE external_id = ?
	`, externalID)
	return scanMessage(row)
}

func scanMessage(row *sql.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.Body, &m.DateMs, &m.ImportanceTier,
		&m.DeliveryStatus, &m.ExternalID, &m.Direction, &m.IsRead)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesForSender returns a sender's messages ordered by recency,
// newest first, for the inbox conversation view.
func (s *Store) ListMessagesForSender(senderID int64, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, sender_id, body, date_ms, importance_tier,
		       delivery_status, external_id, direction, is_read
		FROM messages
		WHERE sender_id = ?
		ORDER BY date_ms DESC, id DESC
		LIMIT ? OFFSET ?
	`, senderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		err := rows.Scan(&m.ID, &m.SenderID, &m.Body, &m.DateMs, &m.ImportanceTier,
			&m.DeliveryStatus, &m.ExternalID, &m.Direction, &m.IsRead)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ApplyStatusUpdate updates only the delivery status of a message, leaving
// every other column untouched.
func (s *Store) ApplyStatusUpdate(u StatusUpdate) error {
	var status sql.NullInt64
	if u.Status != nil {
		status = sql.NullInt64{Int64: int64(*u.Status), Valid: true}
	}
	_, err := s.db.Exec(`
		UPDATE messages SET delivery_status = ? WHERE id = ?
	`, status, u.ID)
	return err
}

// MaxExternalID returns the highest device-native id already persisted,
// or 0 when the store is empty. Ingestion resumes from this watermark.
func (s *Store) MaxExternalID() (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(external_id) FROM messages`).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}
