package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafdoctor/internal/application/analyzer"
	galleryapp "github.com/bryanwahyu/leafdoctor/internal/application/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/application/navigator"
	"github.com/bryanwahyu/leafdoctor/internal/domain/ai"
	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/middleware"
)

const maxJSONBody = 64 << 10

// statusClientClosedRequest is reported when the client goes away mid-request.
const statusClientClosedRequest = 499

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type Deps struct {
	Gallery   *galleryapp.Service
	Sessions  *analyzer.Sessions
	Navigator *navigator.Navigator

	// optional
	Metrics        *middleware.Metrics
	Limiter        *middleware.RateLimiter
	Checkers       map[string]middleware.HealthChecker
	Ready          func() bool
	APIKeys        []string
	AllowedOrigins []string
	MaxUploadBytes int64
	Log            *zap.Logger
}

type Router struct {
	gallery        *galleryapp.Service
	sessions       *analyzer.Sessions
	nav            *navigator.Navigator
	maxUploadBytes int64
	log            *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = analyzer.DefaultMaxUploadBytes
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	r := &Router{
		gallery:        d.Gallery,
		sessions:       d.Sessions,
		nav:            d.Navigator,
		maxUploadBytes: d.MaxUploadBytes,
		log:            d.Log,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(d.Log))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.Limiter != nil {
		mux.Use(middleware.RateLimit(d.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/view", r.wrap(r.handleView))
		rt.Put("/view", r.wrap(r.handleNavigate))
		rt.Get("/diseases", r.wrap(r.handleDiseases))
		rt.Get("/about", r.wrap(r.handleAbout))

		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", r.wrap(r.handleGetSession))
			s.Delete("/", r.wrap(r.handleDeleteSession))
			s.Post("/camera", r.wrap(r.handleStartCamera))
			s.Delete("/camera", r.wrap(r.handleCancelCamera))
			s.Post("/camera/capture", r.wrap(r.handleCapture))
			s.Post("/upload", r.wrap(r.handleUpload))
			s.Post("/analyze", r.wrap(r.handleAnalyze))
			s.Put("/label", r.wrap(r.handleLabel))
			s.Post("/save", r.wrap(r.handleSave))
			s.Post("/reset", r.wrap(r.handleReset))
		})

		rt.Get("/gallery", r.wrap(r.handleListGallery))
		rt.Get("/gallery/stats", r.wrap(r.handleGalleryStats))
		rt.Get("/gallery/{id}", r.wrap(r.handleGetItem))
		rt.Delete("/gallery/{id}", r.wrap(r.handleDeleteItem))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			code, msg := errorStatus(err)
			switch {
			case code == statusClientClosedRequest:
				r.log.Debug("client went away", zap.String("path", req.URL.Path))
			case code >= 500:
				r.log.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.Int("status", code),
					zap.Error(err),
				)
			}
			writeError(w, code, msg)
		}
	}
}

// errorStatus maps domain errors to a status code and client-safe message.
func errorStatus(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, analyzer.ErrSessionNotFound), errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, analyzer.ErrInvalidTransition),
		errors.Is(err, analyzer.ErrStale),
		errors.Is(err, analyzer.ErrClosed),
		errors.Is(err, gallery.ErrDuplicateID):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	case errors.Is(err, diagnosis.ErrAnalysisFailed):
		return http.StatusBadGateway, diagnosis.UserMessage
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "client closed request"
	case errors.Is(err, analyzer.ErrCameraUnavailable):
		return http.StatusServiceUnavailable, camera.UnavailableMessage
	case errors.Is(err, analyzer.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "image exceeds upload limit"
	case errors.Is(err, errBadRequest),
		errors.Is(err, analyzer.ErrNotAnImage),
		errors.Is(err, gallery.ErrInvalidQuery),
		errors.Is(err, gallery.ErrInvalidItem),
		errors.Is(err, navigator.ErrUnknownScreen):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxJSONBody)).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
