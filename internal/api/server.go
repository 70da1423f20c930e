package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/liamashdown/chainwatch/internal/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response is the envelope of every /api response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server serves health, metrics and the read-only transaction API
type Server struct {
	query   *query.Service
	pingers []Pinger
	log     *logrus.Logger
	now     func() time.Time
}

// New creates a server. Every pinger must succeed for /ready to pass.
func New(q *query.Service, log *logrus.Logger, pingers ...Pinger) *Server {
	return &Server{
		query:   q,
		pingers: pingers,
		log:     log,
		now:     time.Now,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// Read API
	mux.HandleFunc("GET /api/health", s.handleAPIHealth)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/transactions/recent", s.handleRecent)
	mux.HandleFunc("GET /api/transactions/recent/{limit}", s.handleRecent)
	mux.HandleFunc("GET /api/transactions/high-risk", s.handleHighRisk)
	mux.HandleFunc("GET /api/transactions/whales", s.handleWhales)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	return withCORS(mux)
}

// Run serves on port until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("port", port).Info("Starting HTTP server (api + health + metrics)")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			metrics.RecordHealthCheck(false)
			s.log.WithError(err).Warn("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	metrics.RecordHealthCheck(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, s.query.ListTransactions)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := query.DefaultRecentLimit
	if raw := r.PathValue("limit"); raw != "" {
		// Unparsable limits fall back to the default
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	s.respondList(w, r, func(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error) {
		return s.query.ListRecent(ctx, limit)
	})
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, s.query.ListHighRisk)
}

func (s *Server) handleWhales(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, s.query.ListWhales)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.GetStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}

func (s *Server) respondList(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]*analyzer.AnalyzedTransaction, error)) {
	txs, err := list(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []*analyzer.AnalyzedTransaction{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: txs})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error("API request failed")
	writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
