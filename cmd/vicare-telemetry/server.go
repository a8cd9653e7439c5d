package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/equipment"
	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/feature"
	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/health"
	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/heating"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	cfg    Config
	router *chi.Mux
	svc    common.Service
	log    *logger.Logger
}

func newServer(cfg Config, svc common.Service, log *logger.Logger) *server {
	srv := &server{
		cfg:    cfg,
		router: chi.NewRouter(),
		svc:    svc,
		log:    log,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(requestLogger(log))
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(cfg.HTTPRequestTimeout))

	srv.routes()
	return srv
}

func (s *server) routes() {
	s.router.Method(http.MethodGet, "/health", health.New(s.svc).WithVersion(Version))
	s.router.Method(http.MethodGet, "/equipment", equipment.New(s.svc))
	s.router.Method(http.MethodGet, "/heating/live", heating.New(s.svc))
	s.router.Method(http.MethodGet, "/features/*", feature.New(s.svc))
}

// requestLogger logs one line per request with the request id chi assigned
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Infow("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down
func (s *server) serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.HTTPRequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Infow("server listening", "port", s.cfg.Port, "version", Version)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case <-ctx.Done():
		s.log.Infow("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warnw("error shutting down server", "err", err)
			if err := httpServer.Close(); err != nil {
				s.log.Warnw("error closing server", "err", err)
			}
		}
		return nil
	}
}
