// Пакет server — HTTP-сервер Federation Node с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/federationserver/federation-node/internal/api/handlers"
	"github.com/federationserver/federation-node/internal/config"
)

// Handlers — обработчики всех маршрутов API.
type Handlers struct {
	Health      *handlers.HealthHandler
	Operators   *handlers.OperatorHandler
	Entities    *handlers.EntityHandler
	Blacklist   *handlers.BlacklistHandler
	Evidence    *handlers.EvidenceHandler
	Attachments *handlers.AttachmentHandler
	Audit       *handlers.AuditHandler
}

// Server — HTTP-сервер Federation Node.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// middlewares применяются в порядке переданного среза ко всем
// маршрутам, включая health и metrics.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, middlewares ...func(http.Handler) http.Handler) *Server {
	router := chi.NewRouter()

	for _, mw := range middlewares {
		router.Use(mw)
	}

	// Health и метрики
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/operators", func(r chi.Router) {
			r.Post("/", h.Operators.Create)
			r.Get("/", h.Operators.List)
			r.Get("/self", h.Operators.Self)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", h.Operators.Get)
				r.Delete("/", h.Operators.Delete)
				r.Post("/refresh-key", h.Operators.RefreshAPIKey)
				r.Post("/enable", h.Operators.Enable)
				r.Post("/disable", h.Operators.Disable)
				r.Patch("/permissions", h.Operators.SetPermissions)
				r.Get("/audit", h.Operators.Audit)
			})
		})

		r.Route("/entities", func(r chi.Router) {
			r.Post("/", h.Entities.Push)
			r.Get("/", h.Entities.List)
			// {identifier} — UUID или SHA-256 хэш
			r.Route("/{identifier}", func(r chi.Router) {
				r.Get("/", h.Entities.Resolve)
				r.Delete("/", h.Entities.Delete)
				r.Get("/blacklist", h.Entities.Blacklist)
				r.Get("/evidence", h.Entities.Evidence)
				r.Get("/audit", h.Entities.Audit)
			})
		})

		r.Route("/blacklist", func(r chi.Router) {
			r.Post("/", h.Blacklist.Create)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", h.Blacklist.Get)
				r.Delete("/", h.Blacklist.Delete)
				r.Post("/lift", h.Blacklist.Lift)
			})
		})

		r.Route("/evidence", func(r chi.Router) {
			r.Post("/", h.Evidence.Create)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", h.Evidence.Get)
				r.Delete("/", h.Evidence.Delete)
				r.Patch("/visibility", h.Evidence.SetVisibility)
				r.Get("/attachments", h.Evidence.Attachments)
				r.Post("/attachments", h.Attachments.Upload)
			})
		})

		r.Route("/attachments/{uuid}", func(r chi.Router) {
			r.Get("/", h.Attachments.Get)
			r.Get("/download", h.Attachments.Download)
			r.Delete("/", h.Attachments.Delete)
		})

		r.Get("/audit", h.Audit.List)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
