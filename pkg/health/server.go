// Package health runs the gateway's HTTP server: liveness and readiness
// probes plus whatever webhook routes the gateway mounts.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

type Check struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusResponse struct {
	Status string           `json:"status"`
	Uptime string           `json:"uptime"`
	Checks map[string]Check `json:"checks,omitempty"`
}

type Server struct {
	server    *http.Server
	mux       *http.ServeMux
	mu        sync.RWMutex
	ready     bool
	checks    map[string]func() (bool, string)
	startTime time.Time
}

func NewServer(host string, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:       mux,
		checks:    make(map[string]func() (bool, string)),
		startTime: time.Now(),
	}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Mux exposes the router so other components can mount their routes.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handle mounts an extra route.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// RegisterCheck adds a named readiness check.
func (s *Server) RegisterCheck(name string, fn func() (bool, string)) {
	s.mu.Lock()
	s.checks[name] = fn
	s.mu.Unlock()
}

func (s *Server) Start() error {
	logger.InfoCF("health", "HTTP server listening", map[string]any{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	fns := make(map[string]func() (bool, string), len(s.checks))
	for k, v := range s.checks {
		fns[k] = v
	}
	s.mu.RUnlock()

	resp := StatusResponse{
		Status: "ready",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		Checks: make(map[string]Check, len(fns)),
	}
	code := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}

	for name, fn := range fns {
		ok, msg := fn()
		c := Check{Name: name, Status: "ok", Message: msg, Timestamp: time.Now()}
		if !ok {
			c.Status = "fail"
			resp.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
		resp.Checks[name] = c
	}

	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
