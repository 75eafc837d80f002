package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/xilidan/roboscribe/gateways/health/handler"
	"github.com/xilidan/roboscribe/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Server answers liveness probes. It never touches recording state.
type Server struct {
	port    int
	log     *slog.Logger
	handler *handler.Handler
}

func New(port int, ready handler.ReadyFunc, log *slog.Logger) *Server {
	log = logger.Component(log, "health")
	log.Debug("creating health server", slog.Int("port", port))

	return &Server{
		port:    port,
		log:     log,
		handler: handler.New(ready, log),
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.handler.RegisterRoutes(router)
	return router
}

// Start serves until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("health server started", slog.String("address", ln.Addr().String()))
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Serve error", slog.String("error", err.Error()))
			serverErrors <- err
			return
		}
		serverErrors <- nil
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info("closing health server due to context cancellation")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
			s.log.Warn("forcing server close")
			srv.Close()
			return fmt.Errorf("failed to gracefully shutdown server: %w", err)
		}
	}

	s.log.Info("health server stopped cleanly")
	return nil
}
