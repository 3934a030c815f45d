package scan

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// CardReader is the interface for card reader implementations.
type CardReader interface {
	// Poll returns the raw identifier bytes of a presented card, or
	// (nil, nil) when no card is present.  It must not block waiting
	// for a card.
	Poll() ([]byte, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Output drives the physical grant line (relay, strike, LED).
type Output interface {
	Set(on bool) error
}

// ReaderConfig selects and configures a reader implementation.
type ReaderConfig struct {
	Type   string // "line" (hex ids, one per line)
	Device string // e.g. "/dev/ttyAMA0" or a FIFO path
}

// NewReader creates a CardReader based on the provided configuration.
func NewReader(cfg ReaderConfig) (CardReader, error) {
	switch cfg.Type {
	case "", "line":
		return NewLineReader(cfg.Device)
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}

// LineReader reads hex-encoded card identifiers, one per line, from a
// character device or FIFO opened non-blocking.  Vendor RFID frontends
// that emit "A1B2C3D4\n" per presentation (serial readers in keyboard
// or ASCII mode) work unmodified.
type LineReader struct {
	f       *os.File
	pending []byte
}

func NewLineReader(device string) (*LineReader, error) {
	if device == "" {
		return nil, fmt.Errorf("reader device is required")
	}
	f, err := os.OpenFile(device, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open reader %s: %w", device, err)
	}
	return &LineReader{f: f}, nil
}

func (r *LineReader) Poll() ([]byte, error) {
	chunk := make([]byte, 64)
	n, err := r.f.Read(chunk)
	if n > 0 {
		r.pending = append(r.pending, chunk[:n]...)
	}
	if err != nil && !errors.Is(err, syscall.EAGAIN) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read reader: %w", err)
	}

	i := bytes.IndexByte(r.pending, '\n')
	if i < 0 {
		// A device spewing bytes with no newline would otherwise grow
		// pending without bound.
		if len(r.pending) > 1024 {
			r.pending = r.pending[:0]
		}
		return nil, nil
	}
	line := bytes.TrimSpace(r.pending[:i])
	r.pending = r.pending[i+1:]
	if len(line) == 0 {
		return nil, nil
	}

	raw, err := hex.DecodeString(string(line))
	if err != nil {
		return nil, fmt.Errorf("bad card id %q: %w", line, err)
	}
	return raw, nil
}

func (r *LineReader) Close() error {
	return r.f.Close()
}

// GPIOOutput drives a sysfs GPIO value file.
type GPIOOutput struct {
	valuePath string
}

func NewGPIOOutput(valuePath string) (*GPIOOutput, error) {
	if valuePath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if _, err := os.Stat(valuePath); err != nil {
		return nil, fmt.Errorf("stat output %s: %w", valuePath, err)
	}
	return &GPIOOutput{valuePath: valuePath}, nil
}

func (o *GPIOOutput) Set(on bool) error {
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	if err := os.WriteFile(o.valuePath, v, 0o644); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}
