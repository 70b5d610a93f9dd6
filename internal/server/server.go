// Package server exposes the adapter's REST and streaming endpoints over
// HTTP: session initialization, account and trade reads, order
// submission, and the per-account closed-trade transaction stream.
package server

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Server wraps the HTTP listener serving the adapter API.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer assembles the route table and middleware around the handler.
func NewServer(port int, apiKey string, handler *Handler, logger *zap.Logger) *Server {
	api := http.NewServeMux()
	handler.RegisterRoutes(api)

	root := http.NewServeMux()
	root.Handle("/api/v1/", apiKeyMiddleware(api, apiKey, logger))
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: root,
		},
		logger: logger.Named("http"),
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
