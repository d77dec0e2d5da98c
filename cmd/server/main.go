package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlaschat/presence/internal/logger"
	"github.com/atlaschat/presence/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	defer logger.Sync()

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	hub := server.NewHub()
	go hub.Run()

	mux := server.SetupRoutes(hub)
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Infof("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
		}
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		logger.Errorf("hub shutdown: %v", err)
	}
}
