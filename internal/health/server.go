package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the monitor over HTTP: a terse liveness check, the
// full per-source report, breaker states and prometheus metrics.
type Server struct {
	monitor *Monitor
	srv     *http.Server
}

// NewServer creates the health server listening on port.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/health/breakers", s.handleBreakers)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	return s
}

// Start blocks serving requests until Stop or a listener error.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth answers load balancers: just the aggregate status, 503
// when any source is critical.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check(r.Context())
	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.Status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Check(r.Context()))
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	breakers := s.monitor.Breakers()
	if breakers == nil {
		breakers = []BreakerStatus{}
	}
	writeJSON(w, http.StatusOK, breakers)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
