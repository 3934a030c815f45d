package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
)

var ErrInvalidCardID = errors.New("card id is required")

// Decision is the outcome of one access evaluation.
type Decision struct {
	Granted   bool
	Reason    string
	DecidedAt time.Time
}

// AccessService is the security-relevant decision point: it answers
// whether a scanned card is authorized right now, and records every
// decision to the audit log.
//
// Evaluation is a plain lookup against the record store — deny when no
// record matches, otherwise the record's enabled flag verbatim.  With
// duplicate ids the first record in slot order is authoritative.  No
// caching: this runs on every scan event and stays O(capacity).
type AccessService struct {
	records    *store.RecordStore
	eventStore store.AccessEventStore
	logger     *log.Logger
}

func NewAccessService(records *store.RecordStore, es store.AccessEventStore, logger *log.Logger) *AccessService {
	return &AccessService{records: records, eventStore: es, logger: logger}
}

// Decide evaluates one scanned card id and records the outcome.
func (s *AccessService) Decide(ctx context.Context, cardID string) (Decision, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return Decision{}, ErrInvalidCardID
	}

	now := time.Now().UTC()

	granted := false
	reason := "unknown_card"
	if rec, ok := s.records.Lookup(cardID); ok {
		if rec.Enabled {
			granted = true
			reason = "card_enabled"
		} else {
			reason = "card_disabled"
		}
	}

	d := Decision{Granted: granted, Reason: reason, DecidedAt: now}
	s.recordEvent(ctx, cardID, d)
	return d, nil
}

// recordEvent persists the decision to the audit log.  A failed audit
// write must not delay or change the access decision, so the error is
// logged rather than returned.
func (s *AccessService) recordEvent(ctx context.Context, cardID string, d Decision) {
	err := s.eventStore.RecordEvent(ctx, store.AccessEventRecord{
		CardID:    cardID,
		Granted:   d.Granted,
		Reason:    d.Reason,
		DecidedAt: d.DecidedAt,
	})
	if err != nil {
		s.logger.Printf("audit write failed (decision unaffected): %v", err)
	}
}
