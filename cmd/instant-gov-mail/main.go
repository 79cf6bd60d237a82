// Точка входа instant-gov-mail — backend учёта служебной корреспонденции.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт файловое хранилище, сервисный слой и API handlers, запускает
// мониторинг зависимостей (topologymetrics) и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mbins999/instant-gov-mail/internal/api/handlers"
	"github.com/mbins999/instant-gov-mail/internal/api/middleware"
	"github.com/mbins999/instant-gov-mail/internal/config"
	"github.com/mbins999/instant-gov-mail/internal/database"
	"github.com/mbins999/instant-gov-mail/internal/repository"
	"github.com/mbins999/instant-gov-mail/internal/server"
	"github.com/mbins999/instant-gov-mail/internal/service"
	"github.com/mbins999/instant-gov-mail/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("instant-gov-mail запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("IGM_DEPHEALTH_GROUP") == "" {
		logger.Warn("IGM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Файловое хранилище
	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("upload_dir", cfg.UploadDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("upload_dir", cfg.UploadDir))

	// 6. Repositories
	sessionRepo := repository.NewSessionRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	correspondenceRepo := repository.NewCorrespondenceRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)

	// 7. Services
	authSvc := service.NewAuthService(
		sessionRepo, userRepo,
		cfg.SessionTTL, cfg.SessionCacheSize, cfg.SessionCacheTTL,
		logger,
	)
	lifecycleSvc := service.NewLifecycleService(correspondenceRepo, logger)
	uploadSvc := service.NewUploadService(attachmentRepo, files, cfg.MaxFileSize, logger)

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, err := service.NewDephealthService(
		"instant-gov-mail",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания dephealth-сервиса", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Error("Ошибка запуска мониторинга зависимостей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dephealthSvc.Stop()

	// 9. Handlers и middleware
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, authSvc, lifecycleSvc, uploadSvc, logger)
	sessionAuth := middleware.NewSessionAuth(authSvc, logger)

	// 10. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, apiHandler, sessionAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
