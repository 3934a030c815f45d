package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreFull is returned by Add when every slot is occupied.
	ErrStoreFull = errors.New("record store is full")

	// ErrNotFound is returned by Toggle and Delete when no record
	// matches the given id.
	ErrNotFound = errors.New("record not found")
)

// LineStorage is the persistence collaborator for the record file.  The
// medium is a plain text file, one record per line, so the only
// operations are read-everything, rewrite-everything, and append.
type LineStorage interface {
	ReadAll(ctx context.Context) ([]string, error)
	WriteAll(ctx context.Context, lines []string) error
	Append(ctx context.Context, line string) error
}

// AccessEventRecord captures a single access decision for the audit log.
type AccessEventRecord struct {
	EventID   string
	CardID    string
	Granted   bool
	Reason    string
	DecidedAt time.Time
}

// AccessEventStore persists access decisions as an append-only audit log.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
