package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/summerlabs/notifai/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func TestResolverKey(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, "US")

	tests := []struct {
		raw      string
		wantKey  string
		wantType store.SenderType
	}{
		{"+1 (555) 123-4567", "+15551234567", store.SenderTypeContact},
		{"  +15551234567  ", "+15551234567", store.SenderTypeContact},
		{"VM-HDFCBK", "HDFCBK", store.SenderTypeBusiness},
		{"HDFCBK", "HDFCBK", store.SenderTypeBusiness},
		{"12345678AB", "12345678AB", store.SenderTypeBusiness}, // letters force business
	}
	for _, tt := range tests {
		key, senderType := r.Key(tt.raw)
		if key != tt.wantKey || senderType != tt.wantType {
			t.Errorf("Key(%q) = (%q, %q), want (%q, %q)",
				tt.raw, key, senderType, tt.wantKey, tt.wantType)
		}
	}
}

func TestResolveCollapsesEquivalentAddresses(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, "US")
	ctx := context.Background()

	first, err := r.Resolve(ctx, "+1 (555) 123-4567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := r.Resolve(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	third, err := r.Resolve(ctx, "5551234567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if first.ID != second.ID || first.ID != third.ID {
		t.Errorf("equivalent addresses resolved to different senders: %d, %d, %d",
			first.ID, second.ID, third.ID)
	}
	if first.NormalizedNumber != "+15551234567" {
		t.Errorf("normalized key = %q, want %q", first.NormalizedNumber, "+15551234567")
	}
	if first.SenderType != store.SenderTypeContact {
		t.Errorf("sender type = %q, want contact", first.SenderType)
	}
}

func TestResolveBrandedSender(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, "US")
	ctx := context.Background()

	a, err := r.Resolve(ctx, "VM-HDFCBK")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := r.Resolve(ctx, "AX-HDFCBK")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if a.ID != b.ID {
		t.Errorf("same brand behind different routes got different senders: %d vs %d", a.ID, b.ID)
	}
	if a.SenderType != store.SenderTypeBusiness {
		t.Errorf("sender type = %q, want business", a.SenderType)
	}
}

func TestResolveEmptyAddress(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, "US")

	if _, err := r.Resolve(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank address")
	}
}

func TestResolveConcurrentSameKey(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, "US")
	ctx := context.Background()

	const n = 16
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, err := r.Resolve(ctx, "+1 (555) 123-4567")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids[i] = sender.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent resolves produced distinct ids: %v", ids)
		}
	}

	sender, err := s.GetSenderByKey("+15551234567")
	if err != nil {
		t.Fatalf("get sender: %v", err)
	}
	if sender == nil {
		t.Fatal("sender missing after concurrent resolve")
	}
}
