package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mfields-dev/cardgate/internal/cardgate/types"
)

// DefaultCapacity is the record slot count used when none is configured.
const DefaultCapacity = 64

// RecordStore holds the authorization list: a fixed number of record
// slots mirrored to a pipe-delimited text file.  Slot indices are stable
// across Toggle and Delete within a run; Delete leaves an empty slot in
// place rather than shifting later records.
//
// Mutations are applied in memory first and then persisted.  If the
// persistence write fails the in-memory state stays authoritative for
// the rest of the run and the error is returned to the caller — the
// mutation is not rolled back.  Callers surface the divergence as a
// warning.
//
// All methods are safe for concurrent use; readers (access evaluation,
// rendering, the admin status endpoint) take the read lock for the
// whole walk so they never observe a half-applied mutation.
type RecordStore struct {
	mu      sync.RWMutex
	slots   []types.Record
	storage LineStorage

	lastSaved time.Time
}

func NewRecordStore(storage LineStorage, capacity int) *RecordStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RecordStore{
		slots:   make([]types.Record, capacity),
		storage: storage,
	}
}

// Load reads the persisted file into the slots.  Lines are trimmed;
// blank and malformed lines are skipped; lines beyond capacity are
// silently dropped.  Returns the number of records loaded.
func (s *RecordStore) Load(ctx context.Context) (int, error) {
	lines, err := s.storage.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		s.slots[i] = types.Record{}
	}

	n := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec, err := types.ParseLine(line)
		if err != nil {
			continue
		}
		if n >= len(s.slots) {
			break
		}
		s.slots[n] = rec
		n++
	}
	return n, nil
}

// FindByID returns the slot index of the first non-empty record whose id
// equals the given id.  Duplicate ids are possible (Add does not
// deduplicate); first match in slot order wins.
func (s *RecordStore) FindByID(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(id)
}

// Lookup returns the first matching record by id.
func (s *RecordStore) Lookup(id string) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.findLocked(id); ok {
		return s.slots[i], true
	}
	return types.Record{}, false
}

func (s *RecordStore) findLocked(id string) (int, bool) {
	for i, rec := range s.slots {
		if !rec.IsZero() && rec.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Add places a new record in the first empty slot and appends its line
// to the persisted file.  Add is the only mutation that can use a pure
// append; Toggle and Delete must rewrite the file.  Returns ErrStoreFull
// when no slot is free.
func (s *RecordStore) Add(ctx context.Context, id, name, unit string, enabled bool) error {
	if err := types.ValidateFields(id, name, unit); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := -1
	for i, rec := range s.slots {
		if rec.IsZero() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ErrStoreFull
	}

	rec := types.Record{ID: id, Name: name, Unit: unit, Enabled: enabled}
	s.slots[slot] = rec

	if err := s.storage.Append(ctx, rec.Line()); err != nil {
		return fmt.Errorf("persist add: %w", err)
	}
	s.lastSaved = time.Now().UTC()
	return nil
}

// Toggle flips the enabled flag of the first record matching id and
// rewrites the whole persisted file (the changed line may sit anywhere
// in the file, and the medium is line-oriented).
func (s *RecordStore) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	s.slots[i].Enabled = !s.slots[i].Enabled
	return s.saveLocked(ctx)
}

// Delete clears the slot of the first record matching id.  The slot
// stays in place as an empty entry so other slot indices do not shift.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	s.slots[i] = types.Record{}
	return s.saveLocked(ctx)
}

// EraseAll clears every slot and truncates the persisted file.
func (s *RecordStore) EraseAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		s.slots[i] = types.Record{}
	}
	return s.saveLocked(ctx)
}

// saveLocked rewrites the persisted file from the current slots.  Empty
// slots are compacted away (blank lines are never written), so indices
// are stable within a run but not across a restart.
func (s *RecordStore) saveLocked(ctx context.Context) error {
	lines := make([]string, 0, len(s.slots))
	for _, rec := range s.slots {
		if rec.IsZero() {
			continue
		}
		lines = append(lines, rec.Line())
	}
	if err := s.storage.WriteAll(ctx, lines); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}
	s.lastSaved = time.Now().UTC()
	return nil
}

// Snapshot returns a copy of the non-empty records in slot order.
func (s *RecordStore) Snapshot() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Record, 0, len(s.slots))
	for _, rec := range s.slots {
		if !rec.IsZero() {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns the number of occupied slots.
func (s *RecordStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.slots {
		if !rec.IsZero() {
			n++
		}
	}
	return n
}

// Capacity returns the total slot count.
func (s *RecordStore) Capacity() int {
	return len(s.slots)
}

// LastSavedAt returns the time of the last successful persistence write.
// The records file watcher uses it to tell the store's own writes apart
// from out-of-band edits.
func (s *RecordStore) LastSavedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSaved
}
