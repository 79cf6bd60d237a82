// Пакет database — PostgreSQL-хранилище сервиса: записи корреспонденции,
// сессии, пользователи и метаданные вложений живут в одной базе.
// Пакет отвечает за пул соединений, накат embedded-миграций и
// проверку готовности базы для /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbins999/instant-gov-mail/internal/config"
)

// Миграции вкомпилированы в бинарь: деплой не зависит от файлов на диске.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// connectPingTimeout ограничивает первичную проверку доступности базы.
const connectPingTimeout = 5 * time.Second

// Connect открывает пул соединений pgx и убеждается, что база отвечает.
// Пул закрывает вызывающая сторона.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия пула PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s:%d недоступен: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("База данных доступна",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)
	return pool, nil
}

// Migrate приводит схему базы к актуальной версии.
// Вызывается при старте до открытия пула: сервис не принимает
// запросы на неполной схеме.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения embedded-миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации migrate: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Схема БД актуальна, новых миграций нет")
	case err != nil:
		return fmt.Errorf("ошибка наката миграций: %w", err)
	default:
		version, dirty, _ := m.Version()
		logger.Info("Схема БД обновлена",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// readinessProbeTimeout ограничивает проверку готовности,
// чтобы зависший Ping не заморозил /health/ready.
const readinessProbeTimeout = 3 * time.Second

// ReadinessChecker сообщает health endpoint, отвечает ли база.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности поверх пула.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady выполняет Ping базы и возвращает статус ("ok"/"fail")
// с поясняющим сообщением.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessProbeTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("база данных не отвечает: %v", err)
	}
	return "ok", "база данных отвечает"
}
