package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/jhquant/internal/api/handlers"
	"github.com/wonny/jhquant/pkg/logger"
)

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes are the handlers mounted by NewRouter; all but Screening and Hub are optional
type Routes struct {
	Screening *handlers.ScreeningHandler
	Runs      *handlers.RunsHandler
	Jobs      *handlers.JobsHandler
	Hub       *Hub
	Metrics   http.Handler
	DB        Pinger
	Cache     Pinger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(routes.DB, routes.Cache)).Methods("GET")
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}
	r.HandleFunc("/ws", routes.Hub.ServeWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Screening endpoints
	api.HandleFunc("/strategies", routes.Screening.ListStrategies).Methods("GET")
	api.HandleFunc("/strategies/{name}/latest", routes.Screening.Latest).Methods("GET")
	api.HandleFunc("/run", routes.Screening.Run).Methods("POST")

	// Run journal
	if routes.Runs != nil {
		api.HandleFunc("/runs", routes.Runs.List).Methods("GET")
		api.HandleFunc("/runs/summary", routes.Runs.Summary).Methods("GET")
		api.HandleFunc("/runs/{id}", routes.Runs.Get).Methods("GET")
	}
	if routes.Jobs != nil {
		api.HandleFunc("/jobs", routes.Jobs.List).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
// A failing database reports 503; a failing cache only degrades.
func healthCheckHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]interface{}{"service": "jhquant"}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				body["database"] = err.Error()
			} else {
				body["database"] = "ok"
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				status = "degraded"
				body["cache"] = err.Error()
			} else {
				body["cache"] = "ok"
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
