// Package control exposes a router over HTTP for inspection and manual
// control.
package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/health"
	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// Server holds the handler dependencies.
type Server struct {
	router  *unitrouter.Router
	health  *health.Aggregator
	metrics http.Handler
	logger  unitrouter.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHealth serves /healthz and /readyz from agg.
func WithHealth(agg *health.Aggregator) Option {
	return func(s *Server) { s.health = agg }
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates the control server for r.
func NewServer(r *unitrouter.Router, logger unitrouter.Logger, opts ...Option) *Server {
	s := &Server{router: r, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/units", s.listUnits)
	r.Route("/units/{name}", func(r chi.Router) {
		r.Get("/", s.getUnit)
		r.Delete("/", s.unregisterUnit)
		r.Post("/unload", s.unloadUnit)
	})
	r.Get("/location", s.getLocation)
	r.Post("/navigate", s.navigate)
	r.Get("/journal", s.journal)

	if s.health != nil {
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start), "requestID", middleware.GetReqID(r.Context()))
	})
}

// UnitResponse is a unit plus its transition history.
type UnitResponse struct {
	unitrouter.UnitInfo
	History []lifecycle.Transition `json:"history,omitempty"`
}

func (s *Server) listUnits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Units())
}

func (s *Server) getUnit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	u, ok := s.router.Unit(name)
	if !ok {
		writeError(w, http.StatusNotFound, unitrouter.ErrUnitNotFound)
		return
	}
	resp := UnitResponse{}
	for _, info := range s.router.Units() {
		if info.Name == u.Name() {
			resp.UnitInfo = info
		}
	}
	if j := s.router.Journal(); j != nil {
		resp.History = j.History(name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) unregisterUnit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.router.Unregister(r.Context(), name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unloadUnit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wait, _ := strconv.ParseBool(r.URL.Query().Get("waitForUnmount"))
	if err := s.router.Unload(r.Context(), name, unitrouter.UnloadOptions{WaitForUnmount: wait}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	status, _ := s.router.Status(name)
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "status": status})
}

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	URL string `json:"url"`
}

// NavigateResponse reports where the router ended up.
type NavigateResponse struct {
	Location string   `json:"location"`
	Mounted  []string `json:"mounted"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("body must be {\"url\": \"...\"}"))
		return
	}
	if err := s.router.Navigate(req.URL); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	// Wait for a pass queued behind the one the navigation started.
	mounted, err := s.router.Reroute(r.Context(), nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, NavigateResponse{Location: s.router.Location().String(), Mounted: mounted})
}

func (s *Server) getLocation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"location": s.router.Location().String(),
		"mounted":  s.router.MountedNames(),
	})
}

func (s *Server) journal(w http.ResponseWriter, r *http.Request) {
	j := s.router.Journal()
	if j == nil {
		writeJSON(w, http.StatusOK, []lifecycle.Transition{})
		return
	}
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		since = t
	}
	writeJSON(w, http.StatusOK, j.Since(since))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.CheckAll(r.Context())
	code := http.StatusOK
	if status.LivenessStatus == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	status := s.health.CheckAll(r.Context())
	code := http.StatusOK
	if status.ReadinessStatus == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, unitrouter.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, unitrouter.ErrUnitBroken):
		return http.StatusConflict
	case errors.Is(err, unitrouter.ErrCrossOriginNavigation):
		return http.StatusBadRequest
	case errors.Is(err, unitrouter.ErrRouterClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
