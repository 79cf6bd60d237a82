// uploads.go — обработчики загрузки и отдачи файлов.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/mbins999/instant-gov-mail/internal/api/errors"
	"github.com/mbins999/instant-gov-mail/internal/api/middleware"
	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/service"
	"github.com/mbins999/instant-gov-mail/internal/storage/filestore"
)

// multipartMemoryLimit — объём формы, удерживаемый в памяти;
// остальное multipart-парсер складывает во временные файлы.
const multipartMemoryLimit = 1 << 20 // 1 MiB

// multipartOverhead — запас поверх лимита файла на multipart-обрамление
// (границы, заголовки частей) при ограничении тела запроса.
const multipartOverhead = 1 << 20 // 1 MiB

// UploadHandler — обработчики /api/v1/uploads и /uploads.
type UploadHandler struct {
	uploads *service.UploadService
	logger  *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузок.
func NewUploadHandler(uploads *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploads: uploads,
		logger:  logger.With(slog.String("component", "upload_handler")),
	}
}

// uploadResponse — тело ответа на загрузку файла.
type uploadResponse struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	URL          string `json:"url"`
	SizeBytes    int64  `json:"size_bytes"`
	ContentHash  string `json:"content_hash"`
	MimeType     string `json:"mime_type"`
	Kind         string `json:"kind"`
	Deduplicated bool   `json:"deduplicated"`
}

// UploadAttachment — POST /api/v1/uploads/attachment (multipart).
func (h *UploadHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, model.KindAttachment)
}

// UploadSignature — POST /api/v1/uploads/signature (multipart).
func (h *UploadHandler) UploadSignature(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, model.KindSignature)
}

// UploadPDF — POST /api/v1/uploads/pdf (multipart).
func (h *UploadHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, model.KindPDF)
}

// upload — общий путь загрузки: multipart-поле "file".
// Тело запроса обрезается на транспорте: сверхлимитная загрузка
// не буферизуется multipart-парсером во временные файлы.
func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request, kind string) {
	maxBody := h.uploads.MaxFileSize() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Тело запроса превышает лимит %d байт", maxBody))
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле file обязательно")
		return
	}
	defer file.Close()

	result, err := h.uploads.Upload(r.Context(), file, header.Filename, kind, middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	a := result.Attachment
	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, uploadResponse{
		ID:           a.ID,
		FileName:     a.FileName,
		URL:          a.URL(),
		SizeBytes:    a.SizeBytes,
		ContentHash:  a.ContentHash,
		MimeType:     a.MimeType,
		Kind:         a.Kind,
		Deduplicated: result.Deduplicated,
	})
}

// Download — GET /uploads/{category}/{name}, отдача сохранённого файла.
func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	name := chi.URLParam(r, "name")

	if !filestore.ValidCategory(category) {
		apierrors.NotFound(w, "Неизвестная категория")
		return
	}

	f, err := h.uploads.Open(category + "/" + name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, f); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать
		h.logger.Warn("Ошибка отдачи файла",
			slog.String("category", category),
			slog.String("name", name),
			slog.String("error", err.Error()))
	}
}
