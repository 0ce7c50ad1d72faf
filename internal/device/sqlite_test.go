package device

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seedDeviceDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sms.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE sms (
			_id INTEGER PRIMARY KEY,
			address TEXT,
			body TEXT,
			date INTEGER,
			type INTEGER,
			status INTEGER,
			read INTEGER
		);
		INSERT INTO sms VALUES
			(1, '+15551230001', 'hi there', 1700000000001, 1, NULL, 0),
			(2, 'VM-HDFCBK', 'balance is 100', 1700000000002, 1, 0, 1),
			(3, '+15551230001', 'on my way', 1700000000003, 2, 64, 1);
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return path
}

func TestSQLiteSourceCountAndList(t *testing.T) {
	src, err := OpenSQLite(seedDeviceDB(t))
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer src.Close()
	ctx := context.Background()

	count, err := src.Count(ctx, 0)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	count, err = src.Count(ctx, 2)
	if err != nil {
		t.Fatalf("count after watermark: %v", err)
	}
	if count != 1 {
		t.Errorf("count after 2 = %d, want 1", count)
	}

	batch, err := src.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	status := 64
	want := []RawMessage{
		{
			ExternalID: 2, Address: "VM-HDFCBK", Body: "balance is 100",
			DateMs: 1700000000002, Direction: DirectionInbound,
			DeliveryStatus: func() *int { v := 0; return &v }(), Read: true,
		},
		{
			ExternalID: 3, Address: "+15551230001", Body: "on my way",
			DateMs: 1700000000003, Direction: DirectionOutbound,
			DeliveryStatus: &status, Read: true,
		},
	}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenSQLiteMissingFile(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Fatal("expected error for missing device store")
	}
}

func TestMemSourcePagination(t *testing.T) {
	src := NewMemSource(
		RawMessage{ExternalID: 3, Address: "a", Body: "c"},
		RawMessage{ExternalID: 1, Address: "a", Body: "a"},
		RawMessage{ExternalID: 2, Address: "a", Body: "b"},
	)
	ctx := context.Background()

	batch, err := src.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(batch) != 2 || batch[0].ExternalID != 1 || batch[1].ExternalID != 2 {
		t.Errorf("batch = %+v, want ids 1,2 in order", batch)
	}

	// Growth mid-scan is picked up past the cursor.
	src.Add(RawMessage{ExternalID: 4, Address: "a", Body: "d"})
	count, err := src.Count(ctx, 2)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count after growth = %d, want 2", count)
	}
}

func TestMemSourceFaultInjection(t *testing.T) {
	var msgs []RawMessage
	for i := int64(1); i <= 10; i++ {
		msgs = append(msgs, RawMessage{ExternalID: i, Address: "a", Body: "b"})
	}
	src := NewMemSource(msgs...)
	src.FailAfter = 4
	src.FailWith = ErrPermissionDenied
	ctx := context.Background()

	batch, err := src.List(ctx, 0, 4)
	if err != nil {
		t.Fatalf("first batch should serve cleanly: %v", err)
	}
	if len(batch) != 4 {
		t.Fatalf("batch = %d, want 4", len(batch))
	}

	if _, err := src.List(ctx, 4, 4); err != ErrPermissionDenied {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}
