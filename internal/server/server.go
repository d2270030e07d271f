package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/handlers"
	"github.com/akolanti/TenantRAG/internal/middleware"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the ops listener: health, metrics, the MCP endpoint and the document routes.
type Server struct {
	http   *http.Server
	cfg    config.ServerConfig
	logger *logger_i.Logger
}

func NewServer(cfg config.ServerConfig, h *handlers.Handlers, mcpHandler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      NewRouter(cfg, h, mcpHandler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		cfg:    cfg,
		logger: logger_i.NewLogger("Server"),
	}
}

func NewRouter(cfg config.ServerConfig, h *handlers.Handlers, mcpHandler http.Handler) http.Handler {
	chain := middleware.NewChain(cfg)
	r := chi.NewRouter()

	r.With(chain.Trace).Get("/healthz", h.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chain.Wrap)
		r.Post("/documents", h.PostDocumentHandler)
		r.Get("/documents/{id}", h.GetDocumentHandler)
		r.Delete("/documents/{id}", h.DeleteDocumentHandler)
		if mcpHandler != nil {
			r.Handle("/mcp", mcpHandler)
		}
	})
	return r
}

// Run serves until ctx is done, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server is listening at", "address", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("Server crashed", "error", err, "addr", s.cfg.ListenAddr)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Could not shutdown gracefully", "error", err)
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}
