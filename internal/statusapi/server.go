// Package statusapi exposes a small read-only HTTP surface over the
// registrar's runtime state: queue depth and the current device cache.
// Reporting only, no mutation endpoints.
package statusapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zurustar/gb28181registrar/internal/logging"
	"github.com/zurustar/gb28181registrar/internal/registrar"
)

// Server serves the registrar's status endpoints on its own port.
type Server struct {
	deviceCache *registrar.MemoryDeviceCache
	queue       *registrar.Queue
	log         logging.Logger
	server      *http.Server
	addr        net.Addr
}

// NewServer creates a status server over the given device cache and queue.
func NewServer(deviceCache *registrar.MemoryDeviceCache, queue *registrar.Queue, log logging.Logger) *Server {
	return &Server{deviceCache: deviceCache, queue: queue, log: log}
}

// Start binds the listener and serves in the background. port=0 picks an
// ephemeral port.
func (s *Server) Start(port int) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.handleStatus)
	r.Get("/devices", s.handleDevices)

	listener, err := listen(port)
	if err != nil {
		return err
	}
	s.addr = listener.Addr()

	s.server = &http.Server{
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("status api server error", logging.ErrorField(err))
		}
	}()

	s.log.Info("status api listening", logging.StringField("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address. Only meaningful after Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop gracefully shuts the status server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type statusResponse struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	DeviceCount   int `json:"device_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		QueueDepth:    s.queue.Len(),
		QueueCapacity: s.queue.Capacity(),
		DeviceCount:   s.deviceCache.Len(),
	})
}

type deviceView struct {
	AOR        string `json:"aor"`
	Contact    string `json:"contact,omitempty"`
	Domain     string `json:"domain"`
	UserAgent  string `json:"user_agent,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snapshot := s.deviceCache.Snapshot()
	devices := make([]deviceView, 0, len(snapshot))
	for key, camera := range snapshot {
		view := deviceView{
			AOR:       camera.AOR,
			Contact:   camera.Contact,
			Domain:    camera.Domain,
			UserAgent: camera.UserAgent,
			ExpiresAt: camera.ExpiresAt,
		}
		if view.Domain == "" {
			view.Domain = key
		}
		if camera.RemoteAddr != nil {
			view.RemoteAddr = camera.RemoteAddr.String()
		}
		devices = append(devices, view)
	}
	writeJSON(w, devices)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
