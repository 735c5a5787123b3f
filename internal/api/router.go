package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/auth"
	"github.com/kiraleos/tweetsmith/internal/metrics"
)

// NewRouter wires the HTTP surface. metricsHandler, when non-nil, is served at /metrics.
func NewRouter(apiHandler *APIHandler, authn *auth.Authenticator, m *metrics.Metrics, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer) // Recover from panics
	r.Use(metricsMiddleware(m))
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authn.Middleware)

			// Chat persistence
			r.Post("/chats", apiHandler.ChatActionHandler)
			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Get("/chats/{chatID}", apiHandler.GetChatHandler)

			// Tweet generation
			r.Post("/generate", apiHandler.GenerateHandler)
			r.Get("/generate/ws", apiHandler.GenerateWSHandler)
		})
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration_ms", duration).
		Msg("Request completed")
}

// metricsMiddleware records request counts and latency labelled by chi route pattern.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
