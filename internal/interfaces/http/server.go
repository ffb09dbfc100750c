// Package http exposes the read-only monitoring surface: health, metrics,
// and immutable snapshots of beliefs, episodes, and cycle history. Mutation
// stays behind the Go API; the surrounding request/response policy belongs to
// the calling layer.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/frontieralpha/frontier/internal/cvrf"
	"github.com/frontieralpha/frontier/internal/episode"
)

// Pinger reports storage connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober reports connectivity to the external optimization engine.
type Prober interface {
	Health(ctx context.Context) error
}

// Server serves the monitoring and snapshot endpoints.
type Server struct {
	episodes  *episode.Manager
	cycles    *cvrf.Manager
	gatherer  prometheus.Gatherer
	pinger    Pinger
	optimizer Prober
	log       zerolog.Logger
	http      *http.Server
}

// NewServer wires the read-only HTTP surface. pinger may be nil when the
// service runs on the in-memory store; optimizer may be nil when the external
// engine is not configured.
func NewServer(addr string, episodes *episode.Manager, cycles *cvrf.Manager, gatherer prometheus.Gatherer, pinger Pinger, optimizer Prober) *Server {
	s := &Server{
		episodes:  episodes,
		cycles:    cycles,
		gatherer:  gatherer,
		pinger:    pinger,
		optimizer: optimizer,
		log:       log.With().Str("component", "http").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{user}/beliefs", s.handleBeliefs).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{user}/constraints", s.handleConstraints).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{user}/episodes", s.handleEpisodes).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{user}/cycles", s.handleCycles).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := map[string]string{"engine": "ok"}

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			status = "degraded"
			components["database"] = err.Error()
		} else {
			components["database"] = "ok"
		}
	}
	if s.optimizer != nil {
		if err := s.optimizer.Health(r.Context()); err != nil {
			status = "degraded"
			components["optimizer"] = err.Error()
		} else {
			components["optimizer"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
		"cycles_run": s.cyclesRun(),
		"checked_at": time.Now().UTC(),
	})
}

// cyclesRun sums the cycle counter across outcomes from the gathered metric
// families.
func (s *Server) cyclesRun() float64 {
	families, err := s.gatherer.Gather()
	if err != nil {
		return 0
	}
	total := 0.0
	for _, family := range families {
		if family.GetName() != "frontier_cvrf_cycles_total" || family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func (s *Server) handleBeliefs(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	state, err := s.cycles.CurrentBeliefs(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	constraints, err := s.cycles.GetOptimizationConstraints(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, constraints)
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	limit, offset := pagination(r)
	summaries, err := s.episodes.ListEpisodes(r.Context(), user, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	limit, offset := pagination(r)
	history, err := s.cycles.GetCycleHistory(r.Context(), user, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
