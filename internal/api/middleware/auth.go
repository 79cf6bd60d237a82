// auth.go — middleware сессионной аутентификации.
// Извлекает Bearer-токен из заголовка Authorization, разрешает его
// через AuthService и помещает identity пользователя в контекст запроса.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/mbins999/instant-gov-mail/internal/api/errors"
	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — ключ identity пользователя в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// SessionAuth — middleware сессионной аутентификации.
type SessionAuth struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewSessionAuth создаёт middleware аутентификации.
func NewSessionAuth(auth *service.AuthService, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		auth:   auth,
		logger: logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware сессионной аутентификации.
// Токен — Authorization: Bearer <token>. Успешно разрешённая identity
// помещается в контекст запроса.
func (a *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Требуется заголовок Authorization: Bearer <token>")
				return
			}

			identity, err := a.auth.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrSessionExpired):
					apierrors.SessionExpired(w, "Срок действия сессии истёк")
				case errors.Is(err, service.ErrUnauthenticated):
					apierrors.Unauthorized(w, "Недействительный токен сессии")
				default:
					a.logger.Error("Ошибка разрешения сессии",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr))
					apierrors.InternalError(w, "Внутренняя ошибка сервера")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithExclusions оборачивает Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes,
// проходят без аутентификации.
func (a *SessionAuth) WithExclusions(excludePrefixes ...string) func(http.Handler) http.Handler {
	authMiddleware := a.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			authMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext извлекает identity из контекста запроса.
// Возвращает nil, если identity не найдена.
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*model.Identity)
	return identity
}

// bearerToken извлекает Bearer-токен из заголовка Authorization.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
