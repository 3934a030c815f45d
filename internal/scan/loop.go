// Package scan drives the card reader: it polls at a fixed cadence,
// canonicalizes raw card bytes, asks the access service for a decision,
// and pulses the grant output.
package scan

import (
	"context"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfields-dev/cardgate/internal/cardgate/service"
	"github.com/mfields-dev/cardgate/internal/metrics"
)

const (
	// DefaultInterval is the scan cadence: the minimum time between
	// successive reader polls.
	DefaultInterval = 250 * time.Millisecond

	// DefaultPulse is how long the grant output is held active.
	DefaultPulse = 2 * time.Second
)

type Config struct {
	Interval time.Duration
	Pulse    time.Duration
}

type Dependencies struct {
	Logger  *log.Logger
	Reader  CardReader
	Output  Output
	Access  *service.AccessService
	Metrics *metrics.Metrics
	Config  Config
}

// Loop is the scan loop.  It owns the reader and the output; nothing
// else touches either.
type Loop struct {
	logger  *log.Logger
	reader  CardReader
	output  Output
	access  *service.AccessService
	metrics *metrics.Metrics
	pulse   time.Duration
	limiter *rate.Limiter

	mu         sync.Mutex
	lastScanAt time.Time
	lastCardID string
}

func NewLoop(d Dependencies) *Loop {
	interval := d.Config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	pulse := d.Config.Pulse
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Loop{
		logger:  d.Logger,
		reader:  d.Reader,
		output:  d.Output,
		access:  d.Access,
		metrics: d.Metrics,
		pulse:   pulse,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Run polls until ctx is cancelled.  The limiter enforces the scan
// cadence; a poll with no card present returns immediately.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.step(ctx)
	}
}

// step performs one poll/evaluate/pulse cycle.  Reader and output
// errors are logged and the loop carries on; only startup failures of
// the devices are fatal, and those happen before the loop exists.
func (l *Loop) step(ctx context.Context) {
	raw, err := l.reader.Poll()
	if err != nil {
		l.logger.Printf("scan: poll: %v", err)
		return
	}
	if len(raw) == 0 {
		return
	}

	cardID := CanonicalID(raw)

	l.mu.Lock()
	l.lastScanAt = time.Now().UTC()
	l.lastCardID = cardID
	l.mu.Unlock()

	d, err := l.access.Decide(ctx, cardID)
	if err != nil {
		l.logger.Printf("scan: decide %q: %v", cardID, err)
		return
	}
	l.metrics.ScanObserved(d.Granted)
	l.logger.Printf("scan: card %s %s (%s)", cardID, grantWord(d.Granted), d.Reason)

	if d.Granted {
		l.doPulse(ctx)
	}
}

// doPulse sets the output active, holds for the pulse duration, then
// clears it.  The hold blocks only the scan goroutine: the device
// protocol server keeps serving during a pulse, unlike the original
// controller where the pulse stalled all processing.
func (l *Loop) doPulse(ctx context.Context) {
	if err := l.output.Set(true); err != nil {
		l.logger.Printf("scan: output on: %v", err)
		return
	}

	t := time.NewTimer(l.pulse)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}

	if err := l.output.Set(false); err != nil {
		l.logger.Printf("scan: output off: %v", err)
	}
}

// LastScan returns the time and canonical id of the most recent scan.
func (l *Loop) LastScan() (time.Time, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastScanAt, l.lastCardID
}

// CanonicalID converts raw card bytes to the canonical identifier:
// uppercase hex, each byte zero-padded to two characters.  Typical tags
// yield 4 or 7 byte identifiers, but any length is accepted.
func CanonicalID(raw []byte) string {
	return strings.ToUpper(hex.EncodeToString(raw))
}

func grantWord(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}
