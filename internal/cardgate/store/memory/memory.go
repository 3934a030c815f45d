package memory

import (
	"context"
	"sync"
)

// Storage is an in-memory LineStorage.  It is intended for tests and dev
// environments, and optionally fails on demand so persistence-error
// paths can be exercised.
type Storage struct {
	mu    sync.Mutex
	lines []string

	// failErr, when set, makes every operation return it.
	failErr error
}

func New() *Storage {
	return &Storage{}
}

// NewSeeded returns a Storage pre-populated with the given lines.
func NewSeeded(lines []string) *Storage {
	s := &Storage{}
	s.lines = append(s.lines, lines...)
	return s
}

func (s *Storage) ReadAll(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out, nil
}

func (s *Storage) WriteAll(_ context.Context, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.lines = make([]string, len(lines))
	copy(s.lines, lines)
	return nil
}

func (s *Storage) Append(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.lines = append(s.lines, line)
	return nil
}

// Lines returns a copy of the stored lines.  Test-only helper.
func (s *Storage) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// FailWith makes subsequent writes fail with err; pass nil to restore
// normal operation.  Test-only helper.
func (s *Storage) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
