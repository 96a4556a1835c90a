// ABOUTME: HTTP monitor for a running receiver
// ABOUTME: Serves /metrics, the /telemetry WebSocket feed and /healthz
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

// Server is the monitor HTTP server
type Server struct {
	registry   *prometheus.Registry
	hub        *Hub
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	log        *logrus.Entry
}

// New creates a monitor serving telemetry from source
func New(source ReportSource) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		registry: registry,
		hub:      NewHub(),
		mux:      http.NewServeMux(),
		log:      logrus.WithField("component", "monitor"),
	}

	s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.mux.Handle("/telemetry", s.hub)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return s
}

// Handler returns the monitor's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Publish forwards a report to /telemetry clients; use it as a
// Reporter.OnReport callback
func (s *Server) Publish(report pcmlink.Report) {
	s.hub.Publish(report)
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Infof("Monitor listening on http://%s (/metrics, /telemetry, /healthz)", listener.Addr())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Monitor server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes telemetry clients and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
