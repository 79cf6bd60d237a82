// handler.go — основной обработчик API.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/mbins999/instant-gov-mail/internal/api/errors"
	"github.com/mbins999/instant-gov-mail/internal/service"
)

// APIHandler — основной обработчик API.
type APIHandler struct {
	Health          *HealthHandler
	Auth            *AuthHandler
	Correspondences *CorrespondenceHandler
	Uploads         *UploadHandler
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	auth *service.AuthService,
	lifecycle *service.LifecycleService,
	uploads *service.UploadService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		Health:          health,
		Auth:            NewAuthHandler(auth, logger),
		Correspondences: NewCorrespondenceHandler(lifecycle, logger),
		Uploads:         NewUploadHandler(uploads, logger),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Неопознанные ошибки логируются и возвращаются как 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		apierrors.SessionExpired(w, "Срок действия сессии истёк")
	case errors.Is(err, service.ErrUnauthenticated):
		apierrors.Unauthorized(w, "Требуется аутентификация")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Недостаточно прав")
	case errors.Is(err, service.ErrLocked):
		apierrors.Locked(w, "Запись заблокирована — изменение типа отображения невозможно")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnsupportedType):
		apierrors.UnsupportedType(w, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Запись изменена конкурентным запросом, повторите")
	default:
		logger.Error("Необработанная ошибка сервисного слоя", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
