package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SenderType classifies a sender as a personal contact or a business short code.
type SenderType string

const (
	SenderTypeContact  SenderType = "contact"
	SenderTypeBusiness SenderType = "business"
)

// Sender represents one stable sender identity. There is exactly one row per
// canonical identity key (normalized number or trimmed business code), and its
// ID is the join key for every message from that identity.
type Sender struct {
	ID               int64
	DisplayName      sql.NullString
	NormalizedNumber string
	RawAddress       string
	SenderType       SenderType
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const senderColumns = `id, display_name, normalized_number, raw_address, sender_type, created_at, updated_at`

func scanSender(row interface{ Scan(...any) error }) (*Sender, error) {
	var s Sender
	var createdAt, updatedAt string
	err := row.Scan(&s.ID, &s.DisplayName, &s.NormalizedNumber, &s.RawAddress,
		&s.SenderType, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	s.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
	return &s, nil
}

// EnsureSender gets or creates the sender row for a canonical identity key.
// The insert-then-select runs inside one transaction so concurrent callers
// racing on the same key always converge on a single row.
func (s *Store) EnsureSender(key, rawAddress string, senderType SenderType) (*Sender, error) {
	var sender *Sender
	err := s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO senders (normalized_number, raw_address, sender_type)
			VALUES (?, ?, ?)
			ON CONFLICT(normalized_number) DO NOTHING
		`, key, rawAddress, senderType)
		if err != nil {
			return fmt.Errorf("insert sender: %w", err)
		}

		row := tx.QueryRow(`SELECT `+senderColumns+` FROM senders WHERE normalized_number = ?`, key)
		sender, err = scanSender(row)
		if err != nil {
			return fmt.Errorf("select sender: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// GetSender returns a sender by ID, or nil if it does not exist.
func (s *Store) GetSender(id int64) (*Sender, error) {
	row := s.db.QueryRow(`SELECT `+senderColumns+` FROM senders WHERE id = ?`, id)
	sender, err := scanSender(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// GetSenderByKey returns a sender by canonical identity key, or nil.
func (s *Store) GetSenderByKey(key string) (*Sender, error) {
	row := s.db.QueryRow(`SELECT `+senderColumns+` FROM senders WHERE normalized_number = ?`, key)
	sender, err := scanSender(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// UpdateSenderDisplayName sets the display name for the contact-type sender
// with the given canonical key. Business senders are never renamed by the
// contacts resync. Returns true if a row was updated.
func (s *Store) UpdateSenderDisplayName(key, displayName string) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE senders
		SET display_name = ?, updated_at = datetime('now')
		WHERE normalized_number = ? AND sender_type = 'contact'
	`, displayName, key)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ListContactSenders returns every contact-type sender. The contacts resync
// uses it to match stored keys against the contact store.
func (s *Store) ListContactSenders() ([]Sender, error) {
	rows, err := s.db.Query(`SELECT ` + senderColumns + ` FROM senders WHERE sender_type = 'contact'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sender
	for rows.Next() {
		sender, err := scanSender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sender)
	}
	return out, rows.Err()
}

// ResyncSenderContact moves the contact-type sender stored under oldKey to
// the contact store's canonical key and sets its display name. The rewrite is
// skipped when another sender already owns newKey, keeping one row per key.
// Returns true if the row was rewritten.
func (s *Store) ResyncSenderContact(oldKey, newKey, displayName string) (bool, error) {
	var updated bool
	err := s.withTx(func(tx *sql.Tx) error {
		var taken int
		err := tx.QueryRow(`SELECT COUNT(*) FROM senders WHERE normalized_number = ?`, newKey).Scan(&taken)
		if err != nil {
			return err
		}
		if taken > 0 {
			return nil
		}

		result, err := tx.Exec(`
			UPDATE senders
			SET normalized_number = ?, display_name = ?, updated_at = datetime('now')
			WHERE normalized_number = ? AND sender_type = 'contact'
		`, newKey, displayName, oldKey)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		updated = n > 0
		return err
	})
	return updated, err
}

// SenderFilter selects which senders a paged listing returns.
type SenderFilter int

const (
	// SenderFilterAll returns every sender.
	SenderFilterAll SenderFilter = iota
	// SenderFilterImportant returns only senders whose most recent message
	// is important or critical (tier >= 4).
	SenderFilterImportant
)

// SenderSummary is a sender row joined with its latest-message metadata,
// shaped for the inbox contact list.
type SenderSummary struct {
	Sender
	LastMessageBody string
	LastMessageMs   int64
	LastTier        int
	UnreadCount     int64
}

// ListSenders returns senders ordered by most-recent-message, newest first.
func (s *Store) ListSenders(filter SenderFilter, limit, offset int) ([]SenderSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	if filter == SenderFilterImportant {
		where = "WHERE last.tier >= 4"
	}

	query := fmt.Sprintf(`
		SELECT sd.id, sd.display_name, sd.normalized_number, sd.raw_address,
		       sd.sender_type, sd.created_at, sd.updated_at,
		       last.body, last.date_ms, last.tier,
		       (SELECT COUNT(*) FROM messages u WHERE u.sender_id = sd.id AND u.is_read = 0)
		FROM senders sd
		JOIN (
			SELECT m.sender_id, m.body, m.date_ms, m.importance_tier AS tier
			FROM messages m
			JOIN (
				SELECT sender_id, MAX(date_ms) AS max_ms
				FROM messages GROUP BY sender_id
			) mx ON mx.sender_id = m.sender_id AND mx.max_ms = m.date_ms
			GROUP BY m.sender_id
		) last ON last.sender_id = sd.id
		%s
		ORDER BY last.date_ms DESC
		LIMIT ? OFFSET ?
	`, where)

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	defer rows.Close()

	var out []SenderSummary
	for rows.Next() {
		var sum SenderSummary
		var createdAt, updatedAt string
		err := rows.Scan(&sum.ID, &sum.DisplayName, &sum.NormalizedNumber, &sum.RawAddress,
			&sum.SenderType, &createdAt, &updatedAt,
			&sum.LastMessageBody, &sum.LastMessageMs, &sum.LastTier, &sum.UnreadCount)
		if err != nil {
			return nil, fmt.Errorf("scan sender summary: %w", err)
		}
		sum.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		sum.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// UnreadCountForSender returns the number of unread messages for one sender.
func (s *Store) UnreadCountForSender(senderID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages WHERE sender_id = ? AND is_read = 0
	`, senderID).Scan(&count)
	return count, err
}

// UnreadCounts returns unread message counts keyed by sender ID, skipping
// senders with no unread traffic.
func (s *Store) UnreadCounts() (map[int64]int64, error) {
	rows, err := s.db.Query(`
		SELECT sender_id, COUNT(*) FROM messages WHERE is_read = 0 GROUP BY sender_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// MarkSenderRead marks every message from a sender as read. Called when the
// UI opens a conversation.
func (s *Store) MarkSenderRead(senderID int64) error {
	_, err := s.db.Exec(`
		UPDATE messages SET is_read = 1 WHERE sender_id = ? AND is_read = 0
	`, senderID)
	return err
}
