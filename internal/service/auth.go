// Пакет service — бизнес-логика instant-gov-mail.
// auth.go — сессионная аутентификация: выдача и проверка opaque-токенов.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/domain/rbac"
	"github.com/mbins999/instant-gov-mail/internal/repository"
)

// Prometheus-метрики кэша сессий.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш сессий.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша сессий.",
	})
)

// cachedSession — запись кэша: identity плюс срок действия сессии.
// Срок проверяется заново при каждом попадании, чтобы кэшированная
// сессия не пережила собственный expires_at.
type cachedSession struct {
	identity  *model.Identity
	expiresAt time.Time
}

// AuthService — выдача и проверка сессий, проверка прав.
// Токены opaque: 32 случайных байта в base64url, хранятся в БД.
// Сессии append-only, истечение — только фильтрация по expires_at.
type AuthService struct {
	sessions   repository.SessionRepository
	users      repository.UserRepository
	cache      *expirable.LRU[string, cachedSession]
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
// cacheSize и cacheTTL задают параметры LRU-кэша разрешённых токенов.
func NewAuthService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	sessionTTL time.Duration,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		sessions:   sessions,
		users:      users,
		cache:      expirable.NewLRU[string, cachedSession](cacheSize, nil, cacheTTL),
		sessionTTL: sessionTTL,
		logger:     logger.With(slog.String("component", "auth")),
	}
}

// Login проверяет логин и пароль и выдаёт новую сессию.
// Неизвестный пользователь и неверный пароль неразличимы для клиента:
// оба случая — ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Session, *model.Identity, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrUnauthenticated
	}

	session, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	identity, err := s.buildIdentity(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Выдана новая сессия",
		slog.String("username", username),
		slog.Int64("user_id", user.ID),
		slog.Time("expires_at", session.ExpiresAt))

	return session, identity, nil
}

// IssueSession создаёт новую сессию для пользователя.
// Токен — 32 случайных байта (crypto/rand) в base64url.
func (s *AuthService) IssueSession(ctx context.Context, userID int64) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токена: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return session, nil
}

// Resolve проверяет токен и возвращает identity пользователя.
// Неизвестный токен — ErrUnauthenticated, истёкшая сессия — ErrSessionExpired.
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	now := time.Now().UTC()

	// Быстрый путь: кэш. Срок действия проверяется заново —
	// кэшированная сессия не должна пережить expires_at.
	if cached, ok := s.cache.Get(token); ok {
		cacheHitsTotal.Inc()
		if now.After(cached.expiresAt) {
			s.cache.Remove(token)
			return nil, ErrSessionExpired
		}
		return cached.identity, nil
	}
	cacheMissesTotal.Inc()

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("ошибка поиска сессии: %w", err)
	}

	if session.Expired(now) {
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Пользователь удалён, но сессия осталась
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("ошибка получения пользователя сессии: %w", err)
	}

	identity, err := s.buildIdentity(ctx, user)
	if err != nil {
		return nil, err
	}

	s.cache.Add(token, cachedSession{identity: identity, expiresAt: session.ExpiresAt})
	return identity, nil
}

// RequireRole проверяет, входит ли роль identity в список допустимых.
func (s *AuthService) RequireRole(identity *model.Identity, allowed ...string) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !rbac.Allowed(identity.Role, allowed...) {
		return ErrForbidden
	}
	return nil
}

// buildIdentity собирает identity: пользователь плюс роль из user_roles.
// Отсутствие записи роли означает роль по умолчанию (user).
func (s *AuthService) buildIdentity(ctx context.Context, user *model.User) (*model.Identity, error) {
	role, err := s.users.GetRole(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			role = rbac.DefaultRole
		} else {
			return nil, fmt.Errorf("ошибка получения роли пользователя: %w", err)
		}
	}

	return &model.Identity{
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		EntityID:   user.EntityID,
		EntityName: user.EntityName,
		Role:       rbac.Normalize(role),
	}, nil
}

// generateToken возвращает opaque-токен: 32 случайных байта в base64url.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
