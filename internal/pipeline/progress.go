package pipeline

import "sync"

// Status values of the progress wire contract. The UI layer polls these
// exact strings; they must not change.
type Status string

const (
	StatusLoading Status = "LOADING"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Wire contract keys.
const (
	KeyStatus       = "status"
	KeyProcessed    = "processed"
	KeyTotal        = "total"
	KeyErrorMessage = "errorMessage"
)

// Snapshot is one published progress observation.
type Snapshot struct {
	Status       Status
	Processed    int64
	Total        int64
	ErrorMessage string
}

// Data renders the snapshot in the fixed-key wire format. errorMessage is
// present only on ERROR.
func (s Snapshot) Data() map[string]any {
	d := map[string]any{
		KeyStatus:    string(s.Status),
		KeyProcessed: s.Processed,
		KeyTotal:     s.Total,
	}
	if s.Status == StatusError {
		d[KeyErrorMessage] = s.ErrorMessage
	}
	return d
}

// Broadcaster fans progress snapshots out to subscribers. Publication is
// fire-and-forget but ordered: within one run, observed processed counts are
// monotonically non-decreasing and never exceed the total.
type Broadcaster struct {
	mu   sync.Mutex
	last Snapshot
	subs map[int]chan Snapshot
	next int
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Snapshot)}
}

// Reset clears the monotonicity floor at the start of a new run.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = Snapshot{}
}

// Publish sends a snapshot to all subscribers. Processed is clamped so a
// consumer can never observe it decreasing within a run or exceeding the
// total. Slow subscribers miss intermediate snapshots rather than blocking
// the pipeline.
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if snap.Processed < b.last.Processed {
		snap.Processed = b.last.Processed
	}
	if snap.Total > 0 && snap.Processed > snap.Total {
		snap.Processed = snap.Total
	}
	b.last = snap

	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Last returns the most recently published snapshot.
func (b *Broadcaster) Last() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Subscribe registers a consumer. The returned cancel func must be called
// to release the subscription.
func (b *Broadcaster) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Snapshot, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
