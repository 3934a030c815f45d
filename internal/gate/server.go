// Package gate implements the legacy device management protocol: a
// bounded, HTTP-shaped textual protocol served to exactly one client at
// a time.  A connection gets one request/response cycle and is closed;
// further clients wait in the listen backlog until the active session
// ends.  That single-slot policy is the protocol's backpressure model,
// carried over from the original controller firmware.
package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
	"github.com/mfields-dev/cardgate/internal/cardgate/types"
	"github.com/mfields-dev/cardgate/internal/metrics"
)

// DefaultTimeout bounds how long a stalled connection may hold the
// single connection slot.
const DefaultTimeout = 5 * time.Second

// Renderer turns a record snapshot into the HTML document returned for
// every successful request.  Implementations must escape record fields;
// the shipped renderer uses html/template.
type Renderer interface {
	RenderList(records []types.Record) (string, error)
}

type Config struct {
	Addr       string
	BufferSize int           // request buffer capacity; default 512
	Timeout    time.Duration // per-connection deadline; default 5s
}

type Dependencies struct {
	Logger   *log.Logger
	Records  *store.RecordStore
	Renderer Renderer
	Metrics  *metrics.Metrics
	Config   Config
}

type Server struct {
	logger   *log.Logger
	records  *store.RecordStore
	renderer Renderer
	metrics  *metrics.Metrics

	addr    string
	bufSize int
	timeout time.Duration

	listener net.Listener
	buf      *requestBuffer
}

func NewServer(d Dependencies) *Server {
	bufSize := d.Config.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	timeout := d.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		logger:   d.Logger,
		records:  d.Records,
		renderer: d.Renderer,
		metrics:  d.Metrics,
		addr:     d.Config.Addr,
		bufSize:  bufSize,
		timeout:  timeout,
		buf:      newRequestBuffer(bufSize),
	}
}

// Listen binds the device protocol listener.  Split from Serve so
// callers (and tests binding ":0") can learn the address before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gate listen %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts and services connections sequentially until Shutdown
// closes the listener.  One connection is serviced at a time; the next
// is not accepted until the current session reaches its end.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("gate accept: %w", err)
		}
		s.serveConn(conn)
	}
}

// Start is Listen followed by Serve.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown closes the listener.  An in-flight session finishes on its
// own within the connection timeout.
func (s *Server) Shutdown() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// serveConn runs one request/response cycle.  The request buffer is
// reset per connection; the connection deadline covers the whole cycle.
// A timeout closes the connection with no response; an oversized
// request is rejected with a 400 before closing.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(s.timeout))
	s.buf.reset()

	chunk := make([]byte, 128)
	for !s.buf.complete {
		n, err := conn.Read(chunk)
		if n > 0 {
			if werr := s.buf.write(chunk[:n]); werr != nil {
				s.logger.Printf("gate: %v from %s", werr, conn.RemoteAddr())
				s.metrics.RequestObserved("oversized")
				s.writeResponse(conn, 400, "request too large")
				// Drain what the client already sent so closing does not
				// RST the response off the wire.
				_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
				_, _ = io.Copy(io.Discard, conn)
				return
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Printf("gate: connection from %s timed out", conn.RemoteAddr())
				s.metrics.RequestObserved("timeout")
			}
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	status, body, outcome := s.dispatch(ctx, s.buf.request())
	s.metrics.RequestObserved(outcome)
	s.writeResponse(conn, status, body)
}

// dispatch routes one complete request to the record store and returns
// the response status, HTML body and metrics outcome label.
func (s *Server) dispatch(ctx context.Context, raw string) (int, string, string) {
	req, err := parseRequest(raw)
	if err != nil {
		return 400, "malformed request", "malformed"
	}
	if req.method != "GET" {
		return 405, "method not allowed", "bad_request"
	}

	switch req.path {
	case "/":
		return s.renderList("ok")

	case "/add":
		id := req.param("id", maxIDLen)
		name := req.param("name", maxFieldLen)
		unit := req.param("unit", maxFieldLen)
		enabled := req.query.Get("enabled") == "1"

		if err := types.ValidateFields(id, name, unit); err != nil {
			return 400, err.Error(), "bad_request"
		}
		if err := s.records.Add(ctx, id, name, unit, enabled); err != nil {
			if errors.Is(err, store.ErrStoreFull) {
				return 409, "record store is full", "store_full"
			}
			// Persistence failed after the in-memory add; memory stays
			// authoritative until the next successful save.
			s.logger.Printf("gate: add %q persisted with error: %v", id, err)
		}
		return s.renderList("ok")

	case "/toggle":
		return s.mutateByID(ctx, req, "toggle", s.records.Toggle)

	case "/delete":
		return s.mutateByID(ctx, req, "delete", s.records.Delete)

	case "/erase":
		if err := s.records.EraseAll(ctx); err != nil {
			s.logger.Printf("gate: erase persisted with error: %v", err)
		}
		return s.renderList("ok")

	default:
		return 404, "not found", "not_found"
	}
}

func (s *Server) mutateByID(ctx context.Context, req request, op string, fn func(context.Context, string) error) (int, string, string) {
	id := req.param("id", maxIDLen)
	if id == "" {
		return 400, "id is required", "bad_request"
	}
	if err := fn(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 404, "no record with id "+id, "not_found"
		}
		s.logger.Printf("gate: %s %q persisted with error: %v", op, id, err)
	}
	return s.renderList("ok")
}

func (s *Server) renderList(outcome string) (int, string, string) {
	body, err := s.renderer.RenderList(s.records.Snapshot())
	if err != nil {
		s.logger.Printf("gate: render: %v", err)
		return 500, "render error", "render_error"
	}
	return 200, body, outcome
}

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	409: "Conflict",
	500: "Internal Server Error",
}

func (s *Server) writeResponse(conn net.Conn, status int, body string) {
	text, ok := statusText[status]
	if !ok {
		text = "Error"
	}
	_, err := fmt.Fprintf(conn,
		"HTTP/1.0 %d %s\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, text, len(body), body)
	if err != nil {
		s.logger.Printf("gate: write response: %v", err)
	}
}
