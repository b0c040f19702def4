// Package health serves the process health-check endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Handler answers GET /health with {"ok":true}.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	return mux
}

// Server wraps the health endpoint's HTTP listener.
type Server struct {
	srv *http.Server
}

// NewServer returns a server listening on the given port.
func NewServer(port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Shutdown drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
