package gate

import "errors"

// DefaultBufferSize is the request buffer capacity when none is
// configured.  Requests larger than the buffer are rejected, never
// truncated and misparsed.
const DefaultBufferSize = 512

var (
	// ErrRequestTooLarge means the buffer filled before the terminator
	// was seen.  Policy: reject and close.
	ErrRequestTooLarge = errors.New("request exceeds buffer capacity")

	// ErrMalformedRequest means a complete request could not be parsed.
	ErrMalformedRequest = errors.New("malformed request")
)

// requestBuffer accumulates one request's bytes up to a fixed capacity
// and flags completion once the \r\n\r\n terminator appears.  The
// terminator check looks only at the four bytes ending at the write
// cursor, so accumulation is O(1) per byte regardless of request size.
type requestBuffer struct {
	buf      []byte
	n        int
	complete bool
}

func newRequestBuffer(size int) *requestBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &requestBuffer{buf: make([]byte, size)}
}

// write appends p to the buffer.  Bytes past the terminator are
// discarded.  Returns ErrRequestTooLarge if the buffer fills before a
// terminator is seen.
func (b *requestBuffer) write(p []byte) error {
	for _, c := range p {
		if b.complete {
			return nil
		}
		if b.n == len(b.buf) {
			return ErrRequestTooLarge
		}
		b.buf[b.n] = c
		b.n++
		if b.n >= 4 && b.buf[b.n-4] == '\r' && b.buf[b.n-3] == '\n' &&
			b.buf[b.n-2] == '\r' && b.buf[b.n-1] == '\n' {
			b.complete = true
		}
	}
	return nil
}

// request returns the accumulated request text (without the terminator).
// Valid only once complete.
func (b *requestBuffer) request() string {
	return string(b.buf[:b.n-4])
}

func (b *requestBuffer) reset() {
	b.n = 0
	b.complete = false
}
