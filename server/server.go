package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/broker"
	"github.com/wailbentafat/chat-relay/websocket"
)

// Relay is the part of the relay the server reports on and shuts down.
type Relay interface {
	Connections() (pub, sub broker.State)
	Shutdown(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	relay      Relay
	log        *zap.Logger
}

// NewServer creates the HTTP server exposing the WebSocket endpoint, the
// metrics gathered by gatherer and a health check.
func NewServer(addr string, wsHandler http.HandlerFunc, relay Relay, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{relay: relay, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("HTTP server listening", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

type healthResponse struct {
	Status    string `json:"status"`
	Publish   string `json:"publish"`
	Subscribe string `json:"subscribe"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pub, sub := s.relay.Connections()
	resp := healthResponse{
		Status:    "ok",
		Publish:   pub.String(),
		Subscribe: sub.String(),
	}

	code := http.StatusOK
	if pub != broker.Connected || sub != broker.Connected {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context, clientManager *websocket.ClientManager) error {
	// Step 1: Stop accepting new connections
	s.log.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Step 2: Close all active WebSocket connections
	s.log.Info("Closing WebSocket connections")
	clientManager.CloseAllConnections("Server shutting down")

	// Step 3: Wait for in-flight publishes
	s.log.Info("Waiting for pending operations")
	done := make(chan struct{})
	go func() {
		clientManager.WaitForCompletion()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All operations completed")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout exceeded, forcing exit")
	}

	// Step 4: Stop the relay and release the broker
	s.log.Info("Stopping relay")
	if err := s.relay.Shutdown(ctx); err != nil {
		s.log.Warn("Relay shutdown error", zap.Error(err))
		return err
	}

	s.log.Info("Shutdown complete")
	return nil
}
