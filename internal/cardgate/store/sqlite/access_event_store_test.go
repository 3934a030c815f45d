package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
	sqlitestore "github.com/mfields-dev/cardgate/internal/cardgate/store/sqlite"
)

func TestAccessEventStore_RecordEvent_InsertsRow(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	err := as.RecordEvent(context.Background(), store.AccessEventRecord{
		CardID:    "A1B2C3D4",
		Granted:   true,
		Reason:    "card_enabled",
		DecidedAt: now,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var count int
	err = conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM access_events WHERE card_id = ?`, "A1B2C3D4",
	).Scan(&count)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 access_event row, got %d", count)
	}
}

func TestAccessEventStore_RecordEvent_ColumnsCorrect(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	err := as.RecordEvent(context.Background(), store.AccessEventRecord{
		CardID:    "FFFF",
		Granted:   false,
		Reason:    "unknown_card",
		DecidedAt: now,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var (
		eventID   string
		granted   int
		reason    string
		decidedMs int64
	)
	err = conn.QueryRowContext(context.Background(), `
SELECT event_id, granted, reason, decided_at_ms
FROM access_events WHERE card_id = ?`, "FFFF",
	).Scan(&eventID, &granted, &reason, &decidedMs)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if eventID == "" {
		t.Error("expected a generated event_id")
	}
	if granted != 0 {
		t.Errorf("expected granted=0, got %d", granted)
	}
	if reason != "unknown_card" {
		t.Errorf("expected reason=unknown_card, got %q", reason)
	}
	if decidedMs != now.UnixMilli() {
		t.Errorf("expected decided_at_ms=%d, got %d", now.UnixMilli(), decidedMs)
	}
}

func TestAccessEventStore_RecordEvent_UniqueEventIDs(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := as.RecordEvent(ctx, store.AccessEventRecord{
			CardID:  "A1B2",
			Granted: true,
			Reason:  "card_enabled",
		})
		if err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
	}

	var distinct int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT event_id) FROM access_events`,
	).Scan(&distinct)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if distinct != 3 {
		t.Errorf("expected 3 distinct event ids, got %d", distinct)
	}
}

func TestAccessEventStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -40)
	recent := time.Now().UTC().AddDate(0, 0, -1)

	if err := as.RecordEvent(ctx, store.AccessEventRecord{
		CardID: "OLD1", Reason: "unknown_card", DecidedAt: old,
	}); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := as.RecordEvent(ctx, store.AccessEventRecord{
		CardID: "NEW1", Reason: "card_enabled", Granted: true, DecidedAt: recent,
	}); err != nil {
		t.Fatalf("insert recent: %v", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	deleted, err := as.PruneOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned, got %d", deleted)
	}

	var remaining string
	err = conn.QueryRowContext(ctx, `SELECT card_id FROM access_events`).Scan(&remaining)
	if err != nil {
		t.Fatalf("query survivor: %v", err)
	}
	if remaining != "NEW1" {
		t.Errorf("expected NEW1 to survive, got %q", remaining)
	}
}
