package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	documenthandler "docucred/internal/document/handler"
	identityhandler "docucred/internal/identity/handler"
	issuancehandler "docucred/internal/issuance/handler"
	"docucred/internal/platform/health"
	"docucred/internal/platform/metrics"
	"docucred/pkg/platform/middleware/auth"
	"docucred/pkg/platform/middleware/device"
	"docucred/pkg/platform/middleware/request"
)

// multipartOverhead is headroom above the document limit for form boundaries
// and the submitted_data field.
const multipartOverhead = 1 << 20

// Config holds the transport-level limits.
type Config struct {
	AllowedOrigin  string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Routes groups the handlers the router mounts.
type Routes struct {
	Identity  *identityhandler.Handler
	Documents *documenthandler.Handler
	Issuance  *issuancehandler.Handler
	Health    *health.Handler
}

// NewRouter wires all endpoints with middleware. Everything under /ocr and
// /vc, plus /auth/me, requires a bearer token.
func NewRouter(routes Routes, validator auth.TokenValidator, registry *prometheus.Registry, cfg Config, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(device.Device)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(request.NewMetrics(registry)))
	r.Use(corsHandler(cfg.AllowedOrigin))
	r.Use(request.BodyLimit(cfg.MaxUploadBytes + multipartOverhead))
	r.Use(request.Timeout(cfg.RequestTimeout))

	routes.Health.Register(r)
	r.Handle("/metrics", metrics.Handler(registry))

	routes.Identity.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, logger))
		routes.Identity.Register(r)
		routes.Documents.Register(r)
		routes.Issuance.Register(r)
	})

	return r
}

// corsHandler admits exactly one browser origin; other origins get no CORS
// headers.
func corsHandler(allowedOrigin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
