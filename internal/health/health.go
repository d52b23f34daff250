// Package health provides HTTP health check and operator admin endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health check response.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check represents an individual health check.
type Check struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) (bool, string)

// Controller is the emergency-stop switch exposed under /admin.
type Controller interface {
	EmergencyStop(ctx context.Context, reason string) bool
	ResumeTrading(ctx context.Context) bool
}

// StatsFunc returns a JSON-encodable snapshot for GET /admin/stats.
type StatsFunc func() any

// Server provides health check HTTP endpoints.
type Server struct {
	port    int
	version string

	mu     sync.RWMutex
	checks map[string]CheckFunc
	admin  Controller
	stats  StatsFunc

	server *http.Server
}

// NewServer creates a new health check server.
func NewServer(port int, version string) *Server {
	return &Server{
		port:    port,
		version: version,
		checks:  make(map[string]CheckFunc),
	}
}

// RegisterCheck registers a health check function.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// EnableAdmin mounts the admin endpoints. Without it they answer 404.
func (s *Server) EnableAdmin(ctl Controller, stats StatsFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = ctl
	s.stats = stats
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.HandleFunc("POST /admin/emergency-stop", s.handleEmergencyStop)
	mux.HandleFunc("POST /admin/resume", s.handleResume)
	mux.HandleFunc("GET /admin/stats", s.handleStats)
	return mux
}

// Start binds the port and serves in the background. A bind failure is
// returned; later serve errors go to onError, which may be nil.
func (s *Server) Start(onError func(error)) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed && onError != nil {
			onError(err)
		}
	}()

	return nil
}

// Stop gracefully stops the health check server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) snapshotChecks() map[string]CheckFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := make(map[string]CheckFunc, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	return checks
}

// handleHealth returns full health status with all checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := Status{
		Status:    "ok",
		Checks:    make(map[string]Check),
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for name, check := range s.snapshotChecks() {
		healthy, msg := check(ctx)
		status.Checks[name] = Check{Healthy: healthy, Message: msg}
		if !healthy {
			status.Status = "degraded"
		}
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady returns whether the service is ready to receive traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := s.snapshotChecks()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if healthy, _ := checks[name](ctx); !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: " + name))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// handleLive returns whether the service is alive (simple liveness probe).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}

type adminResponse struct {
	Changed bool   `json:"changed"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) controller() (Controller, StatsFunc) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, s.stats
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	ctl, _ := s.controller()
	if ctl == nil {
		http.NotFound(w, r)
		return
	}
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "admin request"
	}
	changed := ctl.EmergencyStop(r.Context(), reason)
	writeJSON(w, http.StatusOK, adminResponse{Changed: changed, State: "emergency_stopped", Reason: reason})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	ctl, _ := s.controller()
	if ctl == nil {
		http.NotFound(w, r)
		return
	}
	changed := ctl.ResumeTrading(r.Context())
	writeJSON(w, http.StatusOK, adminResponse{Changed: changed, State: "active"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_, stats := s.controller()
	if stats == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
