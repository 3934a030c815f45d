package gate

import (
	"fmt"
	"net/url"
	"strings"
)

// Bounds on untrusted request fields before they reach the record store.
// The record file has no escaping, so bounding here (with the delimiter
// check in types.ValidateFields) is part of the parser's contract.
const (
	maxIDLen    = 32
	maxFieldLen = 64
)

// request is one parsed device protocol request.  The protocol is
// HTTP-shaped but not RFC-compliant: only the request line is
// interpreted; headers are accepted and ignored.
type request struct {
	method string
	path   string
	query  url.Values
}

// parseRequest extracts method, path and URL-decoded query parameters
// from the raw request text.
func parseRequest(raw string) (request, error) {
	line, _, _ := strings.Cut(raw, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return request{}, fmt.Errorf("%w: bad request line", ErrMalformedRequest)
	}

	method := fields[0]
	target := fields[1]

	path, rawQuery, _ := strings.Cut(target, "?")
	if path == "" || path[0] != '/' {
		return request{}, fmt.Errorf("%w: bad request target", ErrMalformedRequest)
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return request{}, fmt.Errorf("%w: bad query string", ErrMalformedRequest)
	}

	return request{method: method, path: path, query: query}, nil
}

// param returns the named query parameter clipped to maxLen bytes.
func (r request) param(name string, maxLen int) string {
	v := r.query.Get(name)
	if len(v) > maxLen {
		v = v[:maxLen]
	}
	return v
}
