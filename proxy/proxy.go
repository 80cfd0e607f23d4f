// Package proxy implements the query-execution proxy through which the
// self-hosted database is reached.
//
// The proxy owns the actual database connections. Clients send a Request
// carrying connection parameters, a SQL statement and positional params, and
// receive either rows or an error message. Two transports are provided:
//
//   - HTTP: JSON bodies authenticated with an HS256 bearer token
//   - NATS: request/reply with MessagePack bodies
//
// Server executes requests against pooled database/sql handles.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/arloliu/switchyard/types"
)

// DefaultPort is used when a target does not specify one.
const DefaultPort = 3306

// Target holds the connection parameters of a self-hosted database.
type Target struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Configured reports whether host, user, password and database are all set.
func (t Target) Configured() bool {
	return t.Host != "" && t.User != "" && t.Password != "" && t.Database != ""
}

// Sanitized returns a copy with a cleaned host and a defaulted port.
//
// The host loses any scheme, path and trailing ":port", so values pasted
// from a browser or a connection string still work.
func (t Target) Sanitized() Target {
	out := t
	out.Host = SanitizeHost(t.Host)
	if out.Port <= 0 {
		out.Port = DefaultPort
	}

	return out
}

// Address returns "host:port" of the sanitized target.
func (t Target) Address() string {
	s := t.Sanitized()
	return s.Host + ":" + strconv.Itoa(s.Port)
}

var (
	schemeRegex = regexp.MustCompile(`(?i)^https?://`)
	pathRegex   = regexp.MustCompile(`/.*$`)
	portRegex   = regexp.MustCompile(`:\d+$`)
)

// SanitizeHost strips scheme, path and port from a host string.
func SanitizeHost(raw string) string {
	h := strings.TrimSpace(raw)
	h = schemeRegex.ReplaceAllString(h, "")
	h = pathRegex.ReplaceAllString(h, "")
	h = portRegex.ReplaceAllString(h, "")

	return h
}

// Request is one statement to execute on a target database.
type Request struct {
	Target

	// Query is the SQL statement with "?" placeholders.
	Query string `json:"query"`

	// Params are bound to the placeholders in order.
	Params []any `json:"params,omitempty"`
}

// Validate checks that the request carries everything the proxy needs.
func (r Request) Validate() error {
	if !r.Configured() || strings.TrimSpace(r.Query) == "" {
		return ErrMissingParameters
	}

	return nil
}

// Response is the proxy's answer to a Request.
type Response struct {
	// Data holds the rows of a query.
	Data []types.Record `json:"data,omitempty"`

	// AffectedRows is reported for statements without rows.
	AffectedRows int64 `json:"affectedRows,omitempty"`

	// LastInsertID is reported for inserts into auto-increment tables.
	LastInsertID int64 `json:"lastInsertId,omitempty"`

	// RequestID correlates the response with proxy logs.
	RequestID string `json:"requestId,omitempty"`

	// Error is set when the statement failed.
	Error string `json:"error,omitempty"`
}

// Executor sends statements to the proxy.
//
// Implementations return a *RemoteError when the proxy answered with an
// error, and a transport error when no answer was received.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

var (
	// ErrMissingParameters indicates a request without connection details or query.
	ErrMissingParameters = errors.New("switchyard: proxy request missing connection details or query")

	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("switchyard: proxy request unauthorized")
)

// RemoteError is an error reported by the proxy.
type RemoteError struct {
	// Status is the HTTP status, or zero for non-HTTP transports.
	Status int

	// Message is the error text returned by the proxy.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return "switchyard: proxy error (" + strconv.Itoa(e.Status) + "): " + e.Message
	}

	return "switchyard: proxy error: " + e.Message
}

// decodeResponse parses a JSON response, keeping integers exact.
func decodeResponse(body []byte) (*Response, error) {
	var raw struct {
		Data         []map[string]json.RawMessage `json:"data"`
		AffectedRows int64                        `json:"affectedRows"`
		LastInsertID int64                        `json:"lastInsertId"`
		RequestID    string                       `json:"requestId"`
		Error        string                       `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	resp := &Response{
		AffectedRows: raw.AffectedRows,
		LastInsertID: raw.LastInsertID,
		RequestID:    raw.RequestID,
		Error:        raw.Error,
	}
	if raw.Data != nil {
		resp.Data = make([]types.Record, len(raw.Data))
		for i, row := range raw.Data {
			rec := make(types.Record, len(row))
			for k, v := range row {
				val, err := decodeValue(v)
				if err != nil {
					return nil, err
				}
				rec[k] = val
			}
			resp.Data[i] = rec
		}
	}

	return resp, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	return v, nil
}
