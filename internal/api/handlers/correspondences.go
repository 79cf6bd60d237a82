// correspondences.go — обработчики CRUD корреспонденций.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/mbins999/instant-gov-mail/internal/api/errors"
	"github.com/mbins999/instant-gov-mail/internal/api/middleware"
	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/repository"
	"github.com/mbins999/instant-gov-mail/internal/service"
)

// CorrespondenceHandler — обработчики /api/v1/correspondences.
type CorrespondenceHandler struct {
	lifecycle *service.LifecycleService
	logger    *slog.Logger
}

// NewCorrespondenceHandler создаёт обработчик корреспонденций.
func NewCorrespondenceHandler(lifecycle *service.LifecycleService, logger *slog.Logger) *CorrespondenceHandler {
	return &CorrespondenceHandler{
		lifecycle: lifecycle,
		logger:    logger.With(slog.String("component", "correspondence_handler")),
	}
}

// correspondenceResponse — корреспонденция в JSON.
type correspondenceResponse struct {
	ID                   string     `json:"id"`
	Number               string     `json:"number"`
	Type                 string     `json:"type"`
	Subject              string     `json:"subject"`
	Content              string     `json:"content"`
	FromEntity           string     `json:"from_entity"`
	ReceivedByEntity     string     `json:"received_by_entity"`
	Date                 time.Time  `json:"date"`
	Greeting             string     `json:"greeting"`
	ResponsiblePerson    string     `json:"responsible_person"`
	SignatureURL         string     `json:"signature_url"`
	DisplayType          string     `json:"display_type"`
	Attachments          []string   `json:"attachments"`
	Notes                *string    `json:"notes,omitempty"`
	ReceivedBy           *int64     `json:"received_by,omitempty"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`
	CreatedBy            *int64     `json:"created_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Archived             bool       `json:"archived"`
	Status               string     `json:"status"`
	PDFURL               *string    `json:"pdf_url,omitempty"`
	ExternalDocID        *string    `json:"external_doc_id,omitempty"`
	ExternalConnectionID *string    `json:"external_connection_id,omitempty"`
	Version              int64      `json:"version"`
}

func toCorrespondenceResponse(c *model.Correspondence) correspondenceResponse {
	return correspondenceResponse{
		ID:                   c.ID,
		Number:               c.Number,
		Type:                 c.Type,
		Subject:              c.Subject,
		Content:              c.Content,
		FromEntity:           c.FromEntity,
		ReceivedByEntity:     c.ReceivedByEntity,
		Date:                 c.Date,
		Greeting:             c.Greeting,
		ResponsiblePerson:    c.ResponsiblePerson,
		SignatureURL:         c.SignatureURL,
		DisplayType:          c.DisplayType,
		Attachments:          c.Attachments,
		Notes:                c.Notes,
		ReceivedBy:           c.ReceivedBy,
		ReceivedAt:           c.ReceivedAt,
		CreatedBy:            c.CreatedBy,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		Archived:             c.Archived,
		Status:               c.Status,
		PDFURL:               c.PDFURL,
		ExternalDocID:        c.ExternalDocID,
		ExternalConnectionID: c.ExternalConnectionID,
		Version:              c.Version,
	}
}

// createCorrespondenceRequest — тело POST /api/v1/correspondences.
type createCorrespondenceRequest struct {
	Number            string     `json:"number"`
	Type              string     `json:"type"`
	Subject           string     `json:"subject"`
	Content           string     `json:"content"`
	FromEntity        string     `json:"from_entity"`
	ReceivedByEntity  string     `json:"received_by_entity"`
	Date              *time.Time `json:"date"`
	Greeting          string     `json:"greeting"`
	ResponsiblePerson string     `json:"responsible_person"`
	SignatureURL      string     `json:"signature_url"`
	DisplayType       string     `json:"display_type"`
	Attachments       []string   `json:"attachments"`
	Notes             *string    `json:"notes"`
	ReceivedBy        *int64     `json:"received_by"`
	ReceivedAt        *time.Time `json:"received_at"`
}

// updateCorrespondenceRequest — тело PUT /api/v1/correspondences/{id}.
// Отсутствующее поле означает «не изменять»; для nullable-полей
// явный null означает «очистить» (model.Optional различает оба случая).
type updateCorrespondenceRequest struct {
	Number               *string                   `json:"number"`
	Type                 *string                   `json:"type"`
	Subject              *string                   `json:"subject"`
	Content              *string                   `json:"content"`
	FromEntity           *string                   `json:"from_entity"`
	ReceivedByEntity     *string                   `json:"received_by_entity"`
	Greeting             *string                   `json:"greeting"`
	ResponsiblePerson    *string                   `json:"responsible_person"`
	SignatureURL         *string                   `json:"signature_url"`
	DisplayType          *string                   `json:"display_type"`
	Attachments          *[]string                 `json:"attachments"`
	Notes                model.Optional[string]    `json:"notes"`
	ReceivedBy           model.Optional[int64]     `json:"received_by"`
	ReceivedAt           model.Optional[time.Time] `json:"received_at"`
	Archived             *bool                     `json:"archived"`
	Status               *string                   `json:"status"`
	PDFURL               model.Optional[string]    `json:"pdf_url"`
	ExternalDocID        model.Optional[string]    `json:"external_doc_id"`
	ExternalConnectionID model.Optional[string]    `json:"external_connection_id"`
}

func (req *updateCorrespondenceRequest) toPatch() *model.CorrespondencePatch {
	return &model.CorrespondencePatch{
		Number:               req.Number,
		Type:                 req.Type,
		Subject:              req.Subject,
		Content:              req.Content,
		FromEntity:           req.FromEntity,
		ReceivedByEntity:     req.ReceivedByEntity,
		Greeting:             req.Greeting,
		ResponsiblePerson:    req.ResponsiblePerson,
		SignatureURL:         req.SignatureURL,
		DisplayType:          req.DisplayType,
		Attachments:          req.Attachments,
		Notes:                req.Notes,
		ReceivedBy:           req.ReceivedBy,
		ReceivedAt:           req.ReceivedAt,
		Archived:             req.Archived,
		Status:               req.Status,
		PDFURL:               req.PDFURL,
		ExternalDocID:        req.ExternalDocID,
		ExternalConnectionID: req.ExternalConnectionID,
	}
}

// listCorrespondencesResponse — тело ответа GET /api/v1/correspondences.
type listCorrespondencesResponse struct {
	Items   []correspondenceResponse `json:"items"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
	HasMore bool                     `json:"has_more"`
}

// Create — POST /api/v1/correspondences.
func (h *CorrespondenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCorrespondenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	c := &model.Correspondence{
		Number:            req.Number,
		Type:              req.Type,
		Subject:           req.Subject,
		Content:           req.Content,
		FromEntity:        req.FromEntity,
		ReceivedByEntity:  req.ReceivedByEntity,
		Greeting:          req.Greeting,
		ResponsiblePerson: req.ResponsiblePerson,
		SignatureURL:      req.SignatureURL,
		DisplayType:       req.DisplayType,
		Attachments:       req.Attachments,
		Notes:             req.Notes,
		ReceivedBy:        req.ReceivedBy,
		ReceivedAt:        req.ReceivedAt,
	}
	if req.Date != nil {
		c.Date = *req.Date
	}

	created, err := h.lifecycle.Create(r.Context(), c, middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCorrespondenceResponse(created))
}

// Get — GET /api/v1/correspondences/{id}.
func (h *CorrespondenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCorrespondenceResponse(c))
}

// Update — PUT /api/v1/correspondences/{id}, частичное обновление.
func (h *CorrespondenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateCorrespondenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	updated, err := h.lifecycle.Update(r.Context(), id, req.toPatch(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCorrespondenceResponse(updated))
}

// List — GET /api/v1/correspondences?limit=&offset=&type=&status=&archived=.
func (h *CorrespondenceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, offset := paginationDefaults(q.Get("limit"), q.Get("offset"))

	var filters repository.ListFilters
	if v := q.Get("type"); v != "" {
		filters.Type = &v
	}
	if v := q.Get("status"); v != "" {
		filters.Status = &v
	}
	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.ValidationError(w, "Параметр archived должен быть true или false")
			return
		}
		filters.Archived = &archived
	}

	items, total, err := h.lifecycle.List(r.Context(), filters, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := listCorrespondencesResponse{
		Items:  make([]correspondenceResponse, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, c := range items {
		resp.Items = append(resp.Items, toCorrespondenceResponse(c))
	}
	resp.HasMore = int64(offset+len(items)) < total

	writeJSON(w, http.StatusOK, resp)
}

// paginationDefaults нормализует параметры пагинации из query string.
func paginationDefaults(limitStr, offsetStr string) (int, int) {
	limit := 20
	offset := 0

	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			offset = v
		}
	}

	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
