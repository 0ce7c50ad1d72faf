package device

import (
	"context"
	"sort"
	"sync"
)

// MemSource is an in-memory Source for tests and local development. It is
// safe for concurrent use and supports growing mid-scan, mirroring a live
// device store that receives messages during ingestion.
type MemSource struct {
	mu       sync.Mutex
	messages []RawMessage

	// FailAfter, when > 0, makes reads fail with FailWith once that many
	// messages have been served. Used to exercise mid-run fault handling.
	FailAfter int64
	FailWith  error

	served int64
}

// NewMemSource creates a MemSource with the given messages.
func NewMemSource(messages ...RawMessage) *MemSource {
	s := &MemSource{}
	s.Add(messages...)
	return s
}

// Add appends messages to the source, keeping id order.
func (s *MemSource) Add(messages ...RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages...)
	sort.Slice(s.messages, func(i, j int) bool {
		return s.messages[i].ExternalID < s.messages[j].ExternalID
	})
}

// Count returns the number of messages with id greater than afterID.
func (s *MemSource) Count(ctx context.Context, afterID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, m := range s.messages {
		if m.ExternalID > afterID {
			count++
		}
	}
	return count, nil
}

// List returns up to limit messages with id greater than afterID.
func (s *MemSource) List(ctx context.Context, afterID int64, limit int) ([]RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RawMessage
	for _, m := range s.messages {
		if m.ExternalID <= afterID {
			continue
		}
		if s.FailWith != nil && s.FailAfter > 0 && s.served >= s.FailAfter {
			return out, s.FailWith
		}
		out = append(out, m)
		s.served++
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
