// Package statusserver serves the session's state on a local HTTP address.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

const APIVersion = "v1"

// Snapshot is the body of GET /v1/state.
type Snapshot struct {
	Session   string    `json:"session"`
	State     string    `json:"state"`
	Mode      string    `json:"mode,omitempty"`
	Resources []string  `json:"resources"`
	Gesture   string    `json:"last_gesture,omitempty"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotFunc reports the current state.
type SnapshotFunc func() Snapshot

// Server is an HTTP status endpoint managed as a resource.
type Server struct {
	addr     string
	snapshot SnapshotFunc
	logger   log.Logger

	mu   sync.Mutex
	http *http.Server
	done chan struct{}
}

func New(addr string, snapshot SnapshotFunc, logger log.Logger) *Server {
	return &Server{addr: addr, snapshot: snapshot, logger: log.OrNoop(logger)}
}

func (s *Server) Name() string { return "status-server" }

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/"+APIVersion, func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)
		r.Get("/state", s.handleState)
	})
	return r
}

// Acquire binds the address, so a port in use fails acquisition, and
// serves in the background.
func (s *Server) Acquire(ctx context.Context) (resource.Info, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.http, s.done = srv, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", log.Err(err))
		}
	}()

	return resource.Info{"addr": ln.Addr().String()}, nil
}

func (s *Server) Release(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.http, s.done
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
		return err
	}
	<-done
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no state source"})
		return
	}
	snap := s.snapshot()
	if snap.Resources == nil {
		snap.Resources = []string{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
