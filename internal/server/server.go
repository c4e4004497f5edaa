// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bakerysensors/hub/api"
	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/hubservice"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config: cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start wires the services, starts polling and serves until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx := context.Background()

	svc, err := hubservice.Bootstrap(ctx, s.config)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	s.hubservice = svc
	s.srv.Handler = api.NewRouter(svc)

	// A failed start leaves polling stopped; the API stays up so the
	// problem can be inspected and polling started later.
	if s.config.Polling.Enabled {
		if err := svc.Polling.Start(ctx); err != nil {
			nuts.L.Errorf("[Server] Polling service not started: %v", err)
		}
	} else {
		nuts.L.Infof("[Server] Polling disabled by configuration")
	}

	errCh := make(chan error, 1)
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return s.waitForShutdown(errCh)
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown(errCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		nuts.L.Errorf("[Server] Error starting server: %v", serveErr)
	}

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := s.srv.Shutdown(ctx)
	s.hubservice.Close()

	if serveErr != nil {
		return serveErr
	}
	if shutdownErr != nil {
		return fmt.Errorf("error shutting down server: %w", shutdownErr)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}
