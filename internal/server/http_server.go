// Package server constructs and starts the HTTP service with sensible
// production defaults.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/atlaschat/presence/internal/logger"
)

// CreateServer creates and configures an HTTP server with the specified
// port and handler.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It blocks until the server exits.
func StartServer(server *http.Server) error {
	logger.Infof("server listening on %s", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
		return err
	}

	logger.Info("HTTP server shutdown completed")
	return nil
}
