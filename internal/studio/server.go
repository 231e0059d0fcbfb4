package studio

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mixdeskhq/mixdesk/internal/studio/config"
	"github.com/mixdeskhq/mixdesk/pkg/artifact"
	"github.com/mixdeskhq/mixdesk/pkg/metrics"
	"github.com/mixdeskhq/mixdesk/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

// Server is the local console: it exposes the submit, status, phases,
// artifact and version endpoints the UI polls.
type Server struct {
	cfg        *config.Config
	controller *Controller
	checker    *ReachabilityChecker
	fetcher    *artifact.Fetcher
	listener   net.Listener
}

func NewServer(
	cfg *config.Config,
	controller *Controller,
	checker *ReachabilityChecker,
	fetcher *artifact.Fetcher,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		checker:    checker,
		fetcher:    fetcher,
		listener:   listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("console").Info("Initializing console server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("console")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	RegisterApi(router, s.controller, s.checker, s.fetcher, s.cfg.Composer.Service.Server)

	srv := http.Server{Addr: s.cfg.ListenAddress, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("console").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("console").Info("console server terminated")
	}()

	zap.S().Named("console").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
