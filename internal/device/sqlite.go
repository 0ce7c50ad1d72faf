package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSource reads from an exported telephony database (the standard
// `sms` table layout: _id, address, body, date, type, status, read).
type SQLiteSource struct {
	db *sql.DB
}

// Telephony `type` column values for received and sent messages.
const (
	telephonyTypeInbox = 1
	telephonyTypeSent  = 2
)

// OpenSQLite opens an exported telephony database read-only.
func OpenSQLite(path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("stat %s: %w", path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("ping device store: %w", ErrPermissionDenied)
		}
		return nil, fmt.Errorf("ping device store: %w", err)
	}

	return &SQLiteSource{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Count returns the number of messages with id greater than afterID.
func (s *SQLiteSource) Count(ctx context.Context, afterID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sms WHERE _id > ?
	`, afterID).Scan(&count)
	if err != nil {
		return 0, s.mapErr(err)
	}
	return count, nil
}

// List returns up to limit messages with id greater than afterID.
func (s *SQLiteSource) List(ctx context.Context, afterID int64, limit int) ([]RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT _id, address, body, date, type, status, read
		FROM sms
		WHERE _id > ?
		ORDER BY _id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, s.mapErr(err)
	}
	defer rows.Close()

	var out []RawMessage
	for rows.Next() {
		var msg RawMessage
		var address, body sql.NullString
		var msgType int
		var status sql.NullInt64
		var read int
		if err := rows.Scan(&msg.ExternalID, &address, &body, &msg.DateMs, &msgType, &status, &read); err != nil {
			return nil, fmt.Errorf("scan sms row: %w", err)
		}

		msg.Address = address.String
		msg.Body = body.String
		msg.Direction = DirectionInbound
		if msgType == telephonyTypeSent {
			msg.Direction = DirectionOutbound
		}
		if status.Valid {
			v := int(status.Int64)
			msg.DeliveryStatus = &v
		}
		msg.Read = read != 0
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapErr(err)
	}
	return out, nil
}

// mapErr lifts driver-level failures onto the source fault classes.
func (s *SQLiteSource) mapErr(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("device store: %w", ErrPermissionDenied)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("device store: %w", ErrInvalidState)
	}
	return err
}
