package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
	"github.com/mfields-dev/cardgate/internal/cardgate/store/memory"
)

func newTestStore(t *testing.T, capacity int, seed []string) (*store.RecordStore, *memory.Storage) {
	t.Helper()

	storage := memory.NewSeeded(seed)
	s := store.NewRecordStore(storage, capacity)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, storage
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_SkipsBlankAndMalformedLines(t *testing.T) {
	s, _ := newTestStore(t, 8, []string{
		"A1B2|Alice|Eng|1",
		"",
		"   ",
		"not a record",
		"C3D4|Bob|Ops|0",
	})

	if got := s.Count(); got != 2 {
		t.Errorf("expected 2 records, got %d", got)
	}
	if _, ok := s.Lookup("A1B2"); !ok {
		t.Error("expected A1B2 to load")
	}
	if _, ok := s.Lookup("C3D4"); !ok {
		t.Error("expected C3D4 to load")
	}
}

func TestLoad_TruncatesSilentlyAtCapacity(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("ID%02d|user|unit|1", i))
	}
	s, _ := newTestStore(t, 4, lines)

	if got := s.Count(); got != 4 {
		t.Errorf("expected capacity-truncated count 4, got %d", got)
	}
	if _, ok := s.Lookup("ID03"); !ok {
		t.Error("expected ID03 within capacity")
	}
	if _, ok := s.Lookup("ID04"); ok {
		t.Error("expected ID04 beyond capacity to be dropped")
	}
}

// ── Add / FindByID ───────────────────────────────────────────────────────────

func TestAdd_ThenLookupReturnsExactFields(t *testing.T) {
	s, _ := newTestStore(t, 4, nil)
	ctx := context.Background()

	if err := s.Add(ctx, "A1B2", "Alice", "Eng", true); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rec, ok := s.Lookup("A1B2")
	if !ok {
		t.Fatal("expected record after Add")
	}
	if rec.Name != "Alice" || rec.Unit != "Eng" || !rec.Enabled {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestAdd_AppendsSingleLineToStorage(t *testing.T) {
	s, storage := newTestStore(t, 4, []string{"A1B2|Alice|Eng|1"})
	ctx := context.Background()

	if err := s.Add(ctx, "C3D4", "Bob", "Ops", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	lines := storage.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines after append, got %d", len(lines))
	}
	if lines[0] != "A1B2|Alice|Eng|1" {
		t.Errorf("existing line disturbed: %q", lines[0])
	}
	if lines[1] != "C3D4|Bob|Ops|0" {
		t.Errorf("appended line: %q", lines[1])
	}
}

func TestAdd_StoreFullDoesNotMutate(t *testing.T) {
	s, storage := newTestStore(t, 2, nil)
	ctx := context.Background()

	if err := s.Add(ctx, "AA01", "a", "u", true); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	if err := s.Add(ctx, "AA02", "b", "u", true); err != nil {
		t.Fatalf("Add 2: %v", err)
	}

	before := storage.Lines()
	err := s.Add(ctx, "AA03", "c", "u", true)
	if !errors.Is(err, store.ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("count changed on failed add: %d", s.Count())
	}
	if len(storage.Lines()) != len(before) {
		t.Error("storage mutated on failed add")
	}
	if _, ok := s.Lookup("AA03"); ok {
		t.Error("rejected record is visible")
	}
}

func TestAdd_RejectsDelimiterInFields(t *testing.T) {
	s, _ := newTestStore(t, 4, nil)

	if err := s.Add(context.Background(), "A1|B2", "Alice", "Eng", true); err == nil {
		t.Error("expected error for delimiter in id")
	}
}

func TestAdd_ReusesDeletedSlot(t *testing.T) {
	s, _ := newTestStore(t, 4, []string{
		"AA01|a|u|1",
		"AA02|b|u|1",
		"AA03|c|u|1",
	})
	ctx := context.Background()

	if err := s.Delete(ctx, "AA02"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Add(ctx, "AA04", "d", "u", true); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The new record takes the freed interior slot.
	i, ok := s.FindByID("AA04")
	if !ok {
		t.Fatal("expected AA04")
	}
	if i != 1 {
		t.Errorf("expected AA04 in freed slot 1, got %d", i)
	}
}

func TestFindByID_DuplicateIDsFirstMatchWins(t *testing.T) {
	s, _ := newTestStore(t, 4, []string{
		"A1B2|First|Eng|0",
		"A1B2|Second|Ops|1",
	})

	rec, ok := s.Lookup("A1B2")
	if !ok {
		t.Fatal("expected a match")
	}
	if rec.Name != "First" {
		t.Errorf("expected first match to win, got %q", rec.Name)
	}
	if rec.Enabled {
		t.Error("expected first record's enabled flag (false)")
	}
}

// ── Toggle ───────────────────────────────────────────────────────────────────

func TestToggle_FlipsAndRewrites(t *testing.T) {
	s, storage := newTestStore(t, 4, []string{
		"A1B2|Alice|Eng|1",
		"C3D4|Bob|Ops|0",
	})
	ctx := context.Background()

	if err := s.Toggle(ctx, "A1B2"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	rec, _ := s.Lookup("A1B2")
	if rec.Enabled {
		t.Error("expected enabled=false after toggle")
	}

	lines := storage.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected full rewrite with 2 lines, got %d", len(lines))
	}
	if lines[0] != "A1B2|Alice|Eng|0" {
		t.Errorf("rewritten line: %q", lines[0])
	}
}

func TestToggle_TwiceRestoresOriginal(t *testing.T) {
	s, _ := newTestStore(t, 4, []string{"A1B2|Alice|Eng|1"})
	ctx := context.Background()

	if err := s.Toggle(ctx, "A1B2"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := s.Toggle(ctx, "A1B2"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}

	rec, _ := s.Lookup("A1B2")
	if !rec.Enabled {
		t.Error("expected double toggle to restore enabled=true")
	}
}

func TestToggle_NotFoundLeavesFileUnchanged(t *testing.T) {
	s, storage := newTestStore(t, 4, []string{"A1B2|Alice|Eng|1"})
	before := storage.Lines()

	err := s.Toggle(context.Background(), "FFFF")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	after := storage.Lines()
	if len(after) != len(before) || after[0] != before[0] {
		t.Error("storage changed on failed toggle")
	}
}

// ── Delete ───────────────────────────────────────────────────────────────────

func TestDelete_PreservesOtherSlotIndices(t *testing.T) {
	s, _ := newTestStore(t, 4, []string{
		"AA01|a|u|1",
		"AA02|b|u|1",
		"AA03|c|u|1",
	})
	ctx := context.Background()

	i3Before, _ := s.FindByID("AA03")

	if err := s.Delete(ctx, "AA02"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := s.Lookup("AA02"); ok {
		t.Error("expected AA02 absent after delete")
	}
	if s.Count() != 2 {
		t.Errorf("expected 2 records, got %d", s.Count())
	}
	if i3After, _ := s.FindByID("AA03"); i3After != i3Before {
		t.Errorf("AA03 slot moved: %d -> %d", i3Before, i3After)
	}
	if s.Capacity() != 4 {
		t.Errorf("capacity changed: %d", s.Capacity())
	}
}

func TestDelete_NotFound(t *testing.T) {
	s, _ := newTestStore(t, 4, nil)

	if err := s.Delete(context.Background(), "FFFF"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ── EraseAll / round-trip ────────────────────────────────────────────────────

func TestEraseAll_ClearsMemoryAndStorage(t *testing.T) {
	s, storage := newTestStore(t, 4, []string{
		"AA01|a|u|1",
		"AA02|b|u|1",
	})

	if err := s.EraseAll(context.Background()); err != nil {
		t.Fatalf("EraseAll: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("expected empty store, got %d", s.Count())
	}
	if got := storage.Lines(); len(got) != 0 {
		t.Errorf("expected truncated storage, got %v", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, storage := newTestStore(t, 8, nil)
	ctx := context.Background()

	_ = s.Add(ctx, "AA01", "a", "u1", true)
	_ = s.Add(ctx, "AA02", "b", "u2", false)
	_ = s.Add(ctx, "AA03", "c", "u3", true)
	// Delete forces a rewrite; the empty slot is compacted on save.
	if err := s.Delete(ctx, "AA02"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	reloaded := store.NewRecordStore(storage, 8)
	if _, err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got, want := reloaded.Snapshot(), s.Snapshot(); len(got) != len(want) {
		t.Fatalf("round-trip count mismatch: %d vs %d", len(got), len(want))
	}
	for i, rec := range reloaded.Snapshot() {
		if rec != s.Snapshot()[i] {
			t.Errorf("record %d mismatch: %+v vs %+v", i, rec, s.Snapshot()[i])
		}
	}
}

// ── Persistence failure ──────────────────────────────────────────────────────

func TestToggle_FailedSaveKeepsMemoryAuthoritative(t *testing.T) {
	s, storage := newTestStore(t, 4, []string{"A1B2|Alice|Eng|1"})
	storage.FailWith(errors.New("flash write failed"))

	err := s.Toggle(context.Background(), "A1B2")
	if err == nil {
		t.Fatal("expected persistence error")
	}

	// The in-memory mutation is not rolled back.
	rec, _ := s.Lookup("A1B2")
	if rec.Enabled {
		t.Error("expected in-memory toggle to stick despite failed save")
	}
}

func TestAdd_FailedAppendKeepsMemoryAuthoritative(t *testing.T) {
	s, storage := newTestStore(t, 4, nil)
	storage.FailWith(errors.New("flash write failed"))

	err := s.Add(context.Background(), "A1B2", "Alice", "Eng", true)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if _, ok := s.Lookup("A1B2"); !ok {
		t.Error("expected in-memory add to stick despite failed append")
	}
}
