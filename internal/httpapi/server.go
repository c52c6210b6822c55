// Package httpapi serves the read-only risk API: current snapshots
// from the cache, a health probe and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/perpsignal/crashwatch/internal/engine"
	"github.com/perpsignal/crashwatch/internal/store"
)

// SnapshotProvider is the read side of the snapshot cache.
type SnapshotProvider interface {
	Get(ctx context.Context, symbol string) (engine.Snapshot, error)
	All(ctx context.Context) ([]engine.Snapshot, error)
}

// Server is the HTTP surface.
type Server struct {
	provider SnapshotProvider
	registry *prometheus.Registry
	log      zerolog.Logger
	router   *mux.Router
}

// New builds the server and its routes.
func New(provider SnapshotProvider, registry *prometheus.Registry, log zerolog.Logger) *Server {
	s := &Server{
		provider: provider,
		registry: registry,
		log:      log,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/risk", s.handleRiskAll).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/risk/{symbol}", s.handleRiskSymbol).Methods(http.MethodGet)
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRiskAll(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.provider.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing snapshots")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleRiskSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, err := s.provider.Get(r.Context(), symbol)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol " + symbol})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("reading snapshot")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
