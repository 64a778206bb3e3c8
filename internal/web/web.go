package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"plancal/internal/config"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/schedule"
	"plancal/internal/wallclock"
)

// ScheduleService is what the HTTP layer needs from schedule.Service.
type ScheduleService interface {
	Aggregate(ctx context.Context, req schedule.Request) (*model.AggregateSchedule, error)
	Groupings(ctx context.Context, t model.ResourceType) ([]string, error)
	Headers(ctx context.Context, t model.ResourceType, grouping string, exclude []string) ([]model.ScheduleHeader, error)
}

// Options wires a Server.
type Options struct {
	Service   ScheduleService
	Converter *wallclock.Converter
	Status    schedule.StatusPolicy

	// BasicAuth, when set with both fields, guards everything but /health.
	BasicAuth *config.BasicAuthConfig

	// Metrics serves /metrics; nil leaves the route out.
	Metrics http.Handler

	// CalendarTTL is advertised to calendar subscribers.
	CalendarTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Server provides the JSON and calendar APIs.
type Server struct {
	opts   Options
	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts, router: chi.NewRouter()}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/groupings/{type}", s.handleGroupings)
		r.Get("/headers/{type}", s.handleHeaders)
		r.Get("/schedule/{type}/{ids}", s.handleSchedule)
		r.Get("/schedule/{type}/{ids}/{period}", s.handleSchedule)
	})
	r.Get("/ical/{type}/{ids}", s.handleCalendar)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	a := s.opts.BasicAuth
	return a != nil && a.Username != "" && a.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.opts.BasicAuth.Username
	password := s.opts.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="plancal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestLogger logs one line per request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		kv := []any{
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if status >= http.StatusInternalServerError {
			appLog.Warn("http request", kv...)
			return
		}
		appLog.Debug("http request", kv...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// statusFor maps a service error onto an HTTP status and a client-safe
// message.
func statusFor(err error) (int, string) {
	var (
		fetchErr  *model.UpstreamFetchError
		schemaErr *model.SchemaValidationError
		periodErr *model.InvalidPeriodError
		invErr    *model.InvariantViolationError
	)
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &periodErr):
		return http.StatusBadRequest, periodErr.Error()
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "upstream timetable unavailable"
	case errors.As(err, &schemaErr):
		return http.StatusBadGateway, "upstream timetable returned an unexpected document"
	case errors.As(err, &invErr):
		return http.StatusInternalServerError, "internal error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timetable timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes the error response for err and logs anything that is not the
// caller's fault.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "path", r.URL.Path, "status", status,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, msg)
}
