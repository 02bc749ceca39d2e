// Package httpapi exposes the resumable-upload core over HTTP: a chi
// router, a standard JSON response envelope, and a Server wrapping
// net/http with graceful shutdown.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/metrics"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	"github.com/marmos91/ditto-upload/internal/telemetry"
	"github.com/marmos91/ditto-upload/internal/upload"
)

// NewRouter builds the full HTTP surface: the upload and download
// endpoints backed by engine/catalog/objects, plus 501 stubs for the
// file/directory/bulk endpoints that are not wired yet. m may be nil
// to disable request metrics.
func NewRouter(engine *upload.Engine, cat catalog.Catalog, objects objectstore.Store, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metricsMiddleware(m))
	r.Use(tracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(passthroughOwner)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"service": "ditto-upload"})
	})
	r.Handle("/metrics", promhttp.Handler())

	uploadH := &uploadHandlers{engine: engine}
	downloadH := &downloadHandlers{catalog: cat, objects: objects}

	r.Post("/upload/create", uploadH.create)
	r.Post("/upload/{file_id}", uploadH.part)

	r.Get("/download/{file_id}/metadata", downloadH.metadata)
	r.Get("/download/{file_id}/view", downloadH.view)
	r.Get("/download/{file_id}", downloadH.fetch)

	registerStubs(r)

	return r
}

func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.ObserveHTTPRequest(route, ww.Status(), time.Since(start))
		})
	}
}

func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		ctx, span := telemetry.StartHTTPSpan(r.Context(), route, r.Method)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
