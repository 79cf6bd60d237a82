// lifecycle.go — жизненный цикл корреспонденции: создание, чтение,
// частичное обновление с optimistic concurrency, список.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/repository"
)

// Ограничения пагинации списка.
const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// casMaxRetries — максимум повторов CAS-обновления при конкурентных записях.
const casMaxRetries = 3

// LifecycleService — операции над записями корреспонденции.
//
// Инвариант блокировки: после archived=true или status="sent"
// display_type записи изменять нельзя. Проверка выполняется против
// свежего состояния и повторяется при каждом CAS-повторе.
type LifecycleService struct {
	repo   repository.CorrespondenceRepository
	logger *slog.Logger
}

// NewLifecycleService создаёт сервис жизненного цикла.
func NewLifecycleService(repo repository.CorrespondenceRepository, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		logger: logger.With(slog.String("component", "lifecycle")),
	}
}

// Create создаёт новую запись корреспонденции.
// display_type обязателен и должен быть допустимым значением.
// id, статус, версию и временные метки назначает сервис.
func (s *LifecycleService) Create(ctx context.Context, c *model.Correspondence, actor *model.Identity) (*model.Correspondence, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !model.ValidDisplayType(c.DisplayType) {
		return nil, fmt.Errorf("%w: display_type должен быть %q или %q",
			ErrValidation, model.DisplayTypeContent, model.DisplayTypeAttachmentOnly)
	}

	now := time.Now().UTC()
	c.ID = uuid.New().String()
	if c.Date.IsZero() {
		c.Date = now
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	c.CreatedBy = &actor.UserID
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Archived = false
	c.Status = model.StatusDraft
	c.Version = 1

	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("ошибка создания корреспонденции: %w", err)
	}

	s.logger.Info("Создана корреспонденция",
		slog.String("id", c.ID),
		slog.String("display_type", c.DisplayType),
		slog.Int64("created_by", actor.UserID))

	return c, nil
}

// Get возвращает запись по идентификатору.
func (s *LifecycleService) Get(ctx context.Context, id string) (*model.Correspondence, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения корреспонденции: %w", err)
	}
	return c, nil
}

// Update применяет частичное обновление к записи.
//
// Изменение display_type запрещено, если запись уже заблокирована
// (archived или status="sent") либо сам patch переводит её в
// заблокированное состояние — в обоих случаях ErrLocked.
//
// Запись выполняется compare-and-swap по version: при проигрыше
// конкурентному запросу состояние перечитывается и проверка блокировки
// выполняется заново, ограниченное число раз, затем ErrConflict.
func (s *LifecycleService) Update(ctx context.Context, id string, patch *model.CorrespondencePatch, actor *model.Identity) (*model.Correspondence, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if patch.DisplayType != nil && !model.ValidDisplayType(*patch.DisplayType) {
		return nil, fmt.Errorf("%w: display_type должен быть %q или %q",
			ErrValidation, model.DisplayTypeContent, model.DisplayTypeAttachmentOnly)
	}
	if patch.Status != nil && *patch.Status == "" {
		return nil, fmt.Errorf("%w: status не может быть пустым", ErrValidation)
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("ошибка чтения корреспонденции: %w", err)
		}

		// Проверка инварианта блокировки против свежего состояния
		if patch.DisplayType != nil && *patch.DisplayType != current.DisplayType {
			if current.Locked() || patch.WillLock() {
				return nil, ErrLocked
			}
		}

		expectedVersion := current.Version
		applyPatch(current, patch)
		current.UpdatedAt = time.Now().UTC()

		err = s.repo.Update(ctx, current, expectedVersion)
		if err == nil {
			current.Version = expectedVersion + 1
			s.logger.Info("Обновлена корреспонденция",
				slog.String("id", id),
				slog.Int64("version", current.Version),
				slog.Int64("updated_by", actor.UserID))
			return current, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Debug("Конфликт версий, повтор обновления",
				slog.String("id", id),
				slog.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления корреспонденции: %w", err)
	}

	return nil, ErrConflict
}

// List возвращает страницу записей (сортировка по дате по убыванию)
// и общее количество под фильтрами.
func (s *LifecycleService) List(ctx context.Context, filters repository.ListFilters, limit, offset int) ([]*model.Correspondence, int64, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка корреспонденций: %w", err)
	}
	if items == nil {
		items = []*model.Correspondence{}
	}
	return items, total, nil
}

// applyPatch переносит в запись только заданные поля patch.
// date, created_at и created_by неизменяемы и в patch отсутствуют.
func applyPatch(c *model.Correspondence, p *model.CorrespondencePatch) {
	if p.Number != nil {
		c.Number = *p.Number
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Subject != nil {
		c.Subject = *p.Subject
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.FromEntity != nil {
		c.FromEntity = *p.FromEntity
	}
	if p.ReceivedByEntity != nil {
		c.ReceivedByEntity = *p.ReceivedByEntity
	}
	if p.Greeting != nil {
		c.Greeting = *p.Greeting
	}
	if p.ResponsiblePerson != nil {
		c.ResponsiblePerson = *p.ResponsiblePerson
	}
	if p.SignatureURL != nil {
		c.SignatureURL = *p.SignatureURL
	}
	if p.DisplayType != nil {
		c.DisplayType = *p.DisplayType
	}
	if p.Attachments != nil {
		c.Attachments = *p.Attachments
	}
	// Nullable-поля: заданное поле переносится как есть,
	// явный null (Value=nil) очищает значение.
	if p.Notes.Set {
		c.Notes = p.Notes.Value
	}
	if p.ReceivedBy.Set {
		c.ReceivedBy = p.ReceivedBy.Value
	}
	if p.ReceivedAt.Set {
		c.ReceivedAt = p.ReceivedAt.Value
	}
	if p.Archived != nil {
		c.Archived = *p.Archived
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.PDFURL.Set {
		c.PDFURL = p.PDFURL.Value
	}
	if p.ExternalDocID.Set {
		c.ExternalDocID = p.ExternalDocID.Value
	}
	if p.ExternalConnectionID.Set {
		c.ExternalConnectionID = p.ExternalConnectionID.Value
	}
}
