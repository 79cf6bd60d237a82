// Пакет config — загрузка и валидация конфигурации сервиса
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сессии ---

	// Время жизни сессии (по умолчанию 30 дней)
	SessionTTL time.Duration
	// TTL записи в LRU-кэше сессий
	SessionCacheTTL time.Duration
	// Максимальное количество записей в кэше сессий
	SessionCacheSize int

	// --- Загрузка файлов ---

	// Корневая директория хранения загруженных файлов
	UploadDir string
	// Максимальный размер загружаемого файла в байтах (по умолчанию 10 MiB)
	MaxFileSize int64

	// --- Мониторинг ---

	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// IGM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("IGM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("IGM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("IGM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// IGM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IGM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IGM_LOG_LEVEL: %w", err)
	}

	// IGM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("IGM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IGM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// IGM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("IGM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// IGM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("IGM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IGM_DB_PORT: %w", err)
	}

	// IGM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("IGM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// IGM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("IGM_DB_USER")
	if err != nil {
		return nil, err
	}

	// IGM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("IGM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// IGM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("IGM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("IGM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Сессии ---

	// IGM_SESSION_TTL — время жизни сессии (по умолчанию 720h = 30 дней)
	cfg.SessionTTL, err = getEnvDuration("IGM_SESSION_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IGM_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL < time.Minute {
		return nil, fmt.Errorf("IGM_SESSION_TTL: значение %v меньше минимального 1m", cfg.SessionTTL)
	}

	// IGM_SESSION_CACHE_TTL — TTL кэша сессий (по умолчанию 1m)
	cfg.SessionCacheTTL, err = getEnvDuration("IGM_SESSION_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IGM_SESSION_CACHE_TTL: %w", err)
	}

	// IGM_SESSION_CACHE_SIZE — размер кэша сессий (по умолчанию 4096)
	cfg.SessionCacheSize, err = getEnvInt("IGM_SESSION_CACHE_SIZE", 4096)
	if err != nil {
		return nil, fmt.Errorf("IGM_SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.SessionCacheSize < 1 {
		return nil, fmt.Errorf("IGM_SESSION_CACHE_SIZE: значение %d должно быть положительным", cfg.SessionCacheSize)
	}

	// --- Загрузка файлов ---

	// IGM_UPLOAD_DIR — корневая директория загрузок (по умолчанию ./uploads)
	cfg.UploadDir = getEnvDefault("IGM_UPLOAD_DIR", "uploads")

	// IGM_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 10 MiB)
	maxSize, err := getEnvInt("IGM_MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("IGM_MAX_FILE_SIZE: %w", err)
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("IGM_MAX_FILE_SIZE: значение %d должно быть положительным", maxSize)
	}
	cfg.MaxFileSize = int64(maxSize)

	// --- Мониторинг ---

	// IGM_DEPHEALTH_GROUP — группа topologymetrics (по умолчанию records)
	cfg.DephealthGroup = getEnvDefault("IGM_DEPHEALTH_GROUP", "records")

	// IGM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("IGM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IGM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// IGM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("IGM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IGM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL подключения для golang-migrate.
// Схема pgx5:// выбирает драйвер pgx/v5 вместо lib/pq.
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
