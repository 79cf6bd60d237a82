// Пакет server — HTTP-сервер с graceful shutdown.
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
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbins999/instant-gov-mail/internal/api/handlers"
	"github.com/mbins999/instant-gov-mail/internal/api/middleware"
	"github.com/mbins999/instant-gov-mail/internal/config"
)

// Server — HTTP-сервер сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// sessionAuth может быть nil для тестирования без аутентификации.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, sessionAuth *middleware.SessionAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Сессионная аутентификация с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, вход — публичен.
	if sessionAuth != nil {
		router.Use(sessionAuth.WithExclusions("/health/", "/metrics", "/api/v1/auth/login"))
	}

	// Health и метрики
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Аутентификация
	router.Post("/api/v1/auth/login", h.Auth.Login)
	router.Get("/api/v1/auth/verify", h.Auth.Verify)

	// Корреспонденции
	router.Post("/api/v1/correspondences", h.Correspondences.Create)
	router.Get("/api/v1/correspondences", h.Correspondences.List)
	router.Get("/api/v1/correspondences/{id}", h.Correspondences.Get)
	router.Put("/api/v1/correspondences/{id}", h.Correspondences.Update)

	// Загрузка и отдача файлов
	router.Post("/api/v1/uploads/attachment", h.Uploads.UploadAttachment)
	router.Post("/api/v1/uploads/signature", h.Uploads.UploadSignature)
	router.Post("/api/v1/uploads/pdf", h.Uploads.UploadPDF)
	router.Get("/uploads/{category}/{name}", h.Uploads.Download)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
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
