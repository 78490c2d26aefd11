// Package handler provides the HTTP API for the school directory.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stevemurr/school-directory/viewmodel"
)

// maxFormMemory is how much of a multipart upload is buffered in memory
// before spilling to temp files.
const maxFormMemory = 8 << 20

// Handler holds the server dependencies and registers routes.
type Handler struct {
	schools  *viewmodel.Adapter
	log      zerolog.Logger
	origins  []string
	registry *prometheus.Registry
	metrics  *metrics
	router   chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithAllowedOrigins sets the CORS origins; "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// New creates a Handler and wires up all routes.
func New(schools *viewmodel.Adapter, opts ...Option) *Handler {
	h := &Handler{
		schools:  schools,
		log:      zerolog.Nop(),
		origins:  []string{"*"},
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics = newMetrics(h.registry, func() float64 {
		return float64(len(h.schools.Schools()))
	})
	h.router = h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.Use(h.cors)

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	r.Get("/state", h.state)

	r.Route("/schools", func(r chi.Router) {
		r.Get("/", h.listSchools)
		r.Post("/", h.createSchool)
		r.Post("/validate", h.validateSchool)
		r.Post("/refresh", h.refreshSchools)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSchool)
			r.Put("/", h.updateSchool)
			r.Delete("/", h.deleteSchool)
			r.Get("/image", h.schoolImage)
			r.Get("/contact", h.contactSchool)
		})
	})
	return r
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "School Directory",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// state exposes the adapter flags for passive display.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	var errMsg *string
	if msg := h.schools.Err(); msg != "" {
		errMsg = &msg
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loading": h.schools.Loading(),
		"error":   errMsg,
		"count":   len(h.schools.Schools()),
	})
}

// ---------- request logging ----------

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			h.log.Info().
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
