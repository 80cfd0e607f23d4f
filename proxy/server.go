package proxy

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	sqladapter "github.com/arloliu/switchyard/adapter/sql"
	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/types"
)

// maxRequestBytes bounds the size of a JSON request body.
const maxRequestBytes = 8 << 20

// Server executes proxy requests against pooled databases.
type Server struct {
	pool    *sqladapter.Pool
	dsn     func(Target) string
	secret  []byte
	apiKey  string
	logger  types.Logger
	timeout time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSecret sets the HS256 secret bearer tokens must be signed with.
func WithSecret(secret []byte) ServerOption {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithAPIKey additionally accepts a static bearer key.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(l types.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithDSNFunc sets how a target is turned into a pool key and DSN.
//
// The default produces a go-sql-driver/mysql DSN.
func WithDSNFunc(fn func(Target) string) ServerOption {
	return func(s *Server) {
		s.dsn = fn
	}
}

// WithStatementTimeout bounds each statement. Zero disables the bound.
func WithStatementTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer creates a proxy server executing on handles from pool.
//
// Parameters:
//   - pool: Database handles keyed by DSN
//   - opts: Optional configuration
//
// Returns:
//   - *Server: The server
func NewServer(pool *sqladapter.Pool, opts ...ServerOption) *Server {
	s := &Server{
		pool:    pool,
		dsn:     MySQLDSN,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger)

	return s
}

// Compile-time assertion that Server implements Executor for in-process use.
var _ Executor = (*Server)(nil)

// Execute runs req in process.
func (s *Server) Execute(ctx context.Context, req Request) (*Response, error) {
	resp := s.handle(ctx, req)
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}

	return resp, nil
}

// handle executes req and always returns a response; failures set Error.
func (s *Server) handle(ctx context.Context, req Request) *Response {
	id := ulid.Make().String()
	if err := req.Validate(); err != nil {
		return &Response{RequestID: id, Error: err.Error()}
	}

	target := req.Target.Sanitized()
	dsn := s.dsn(target)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	db, err := s.pool.Get(ctx, dsn)
	if err != nil {
		s.logger.Warn("proxy connect failed",
			"request_id", id,
			"address", target.Address(),
			"database", target.Database,
			"error", err,
		)

		return &Response{RequestID: id, Error: err.Error()}
	}

	out, err := sqladapter.Run(ctx, db, req.Query, req.Params...)
	if err != nil {
		if errors.Is(err, driver.ErrBadConn) {
			s.pool.Evict(dsn)
		}
		s.logger.Warn("proxy statement failed",
			"request_id", id,
			"database", target.Database,
			"error", err,
		)

		return &Response{RequestID: id, Error: err.Error()}
	}

	s.logger.Debug("proxy statement executed",
		"request_id", id,
		"database", target.Database,
		"rows", len(out.Rows),
		"affected", out.RowsAffected,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Response{
		RequestID:    id,
		Data:         out.Rows,
		AffectedRows: out.RowsAffected,
		LastInsertID: out.LastInsertID,
	}
}

// Handler returns the HTTP API of the proxy.
//
// Routes:
//   - GET  /health: liveness, no auth
//   - POST /v1/execute: execute a Request, bearer auth required
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/v1/execute", s.execute)
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := authorize(s.secret, s.apiKey, extractBearerToken(r)); err != nil {
			s.logger.Warn("proxy auth failure",
				"path", r.URL.Path,
				"remote_ip", r.RemoteAddr,
			)
			writeJSON(w, http.StatusUnauthorized, &Response{Error: "Missing or invalid Authorization header"})

			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pools": s.pool.Len()})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.UseNumber()

	var req Request
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &Response{Error: "invalid request body: " + err.Error()})
		return
	}
	for i, p := range req.Params {
		req.Params[i] = normalizeNumber(p)
	}

	resp := s.handle(r.Context(), req)
	status := http.StatusOK
	if resp.Error != "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}

	return n.String()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
