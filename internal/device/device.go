// Package device reads raw messages from a device message store.
//
// The store is a read-only, paged enumerator ordered by device-native id.
// Its length may change between pages while a long scan is running; callers
// snapshot the total once at run start and count consumed records.
package device

import "context"

// RawMessage is one immutable record from the device store.
type RawMessage struct {
	ExternalID     int64
	Address        string
	Body           string
	DateMs         int64
	Direction      Direction
	DeliveryStatus *int
	Read           bool
}

// Direction of a raw message relative to the device owner.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Source enumerates raw messages in device-native id order.
type Source interface {
	// Count returns the number of messages with id greater than afterID.
	Count(ctx context.Context, afterID int64) (int64, error)
	// List returns up to limit messages with id greater than afterID,
	// ordered by id ascending.
	List(ctx context.Context, afterID int64, limit int) ([]RawMessage, error)
}
