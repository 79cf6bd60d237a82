// auth.go — обработчики аутентификации: вход и проверка сессии.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/mbins999/instant-gov-mail/internal/api/errors"
	"github.com/mbins999/instant-gov-mail/internal/api/middleware"
	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/service"
)

// AuthHandler — обработчики /api/v1/auth.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

// loginRequest — тело запроса POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// identityResponse — identity пользователя в JSON.
type identityResponse struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Role       string `json:"role"`
}

// loginResponse — тело ответа на успешный вход.
type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      identityResponse `json:"user"`
}

func toIdentityResponse(i *model.Identity) identityResponse {
	return identityResponse{
		UserID:     i.UserID,
		Username:   i.Username,
		FullName:   i.FullName,
		EntityID:   i.EntityID,
		EntityName: i.EntityName,
		Role:       i.Role,
	}
}

// Login — POST /api/v1/auth/login.
// Проверяет логин и пароль, выдаёт токен сессии.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if req.Username == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля username и password обязательны")
		return
	}

	session, identity, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toIdentityResponse(identity),
	})
}

// Verify — GET /api/v1/auth/verify.
// Возвращает identity владельца предъявленного токена.
// Identity уже разрешена middleware аутентификации.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}
