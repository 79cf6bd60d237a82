package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
)

// correspondenceColumns — список колонок для SELECT, порядок совпадает со scanCorrespondence.
const correspondenceColumns = `id, number, type, subject, content, from_entity, received_by_entity,
	date, greeting, responsible_person, signature_url, display_type, attachments,
	notes, received_by, received_at, created_by, created_at, updated_at,
	archived, status, pdf_url, external_doc_id, external_connection_id, version`

// LockState — минимальная проекция записи для проверки блокировки
// без чтения тела письма.
type LockState struct {
	DisplayType string
	Archived    bool
	Status      string
	Version     int64
}

// Locked проверяет, заблокирована ли запись.
func (s *LockState) Locked() bool {
	return s.Archived || s.Status == model.StatusSent
}

// ListFilters — фильтры списка корреспонденций. nil-поле — без фильтра.
type ListFilters struct {
	Type     *string
	Archived *bool
	Status   *string
}

// CorrespondenceRepository — доступ к таблице correspondences.
type CorrespondenceRepository interface {
	// Insert сохраняет новую корреспонденцию.
	Insert(ctx context.Context, c *model.Correspondence) error
	// GetByID возвращает корреспонденцию по идентификатору.
	GetByID(ctx context.Context, id string) (*model.Correspondence, error)
	// GetLockState возвращает проекцию блокировки записи.
	GetLockState(ctx context.Context, id string) (*LockState, error)
	// Update сохраняет изменённую запись с проверкой версии (CAS).
	// Обновление применяется только если version в БД равна expectedVersion;
	// при несовпадении возвращает ErrVersionConflict.
	Update(ctx context.Context, c *model.Correspondence, expectedVersion int64) error
	// List возвращает страницу корреспонденций, отсортированных по дате
	// по убыванию, и общее количество записей под фильтрами.
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]*model.Correspondence, int64, error)
}

// correspondenceRepo — реализация CorrespondenceRepository.
type correspondenceRepo struct {
	db DBTX
}

// NewCorrespondenceRepository создаёт репозиторий корреспонденций.
func NewCorrespondenceRepository(db DBTX) CorrespondenceRepository {
	return &correspondenceRepo{db: db}
}

func (r *correspondenceRepo) Insert(ctx context.Context, c *model.Correspondence) error {
	query := `
		INSERT INTO correspondences (
			id, number, type, subject, content, from_entity, received_by_entity,
			date, greeting, responsible_person, signature_url, display_type, attachments,
			notes, received_by, received_at, created_by, created_at, updated_at,
			archived, status, pdf_url, external_doc_id, external_connection_id, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Number, c.Type, c.Subject, c.Content, c.FromEntity, c.ReceivedByEntity,
		c.Date, c.Greeting, c.ResponsiblePerson, c.SignatureURL, c.DisplayType, c.Attachments,
		c.Notes, c.ReceivedBy, c.ReceivedAt, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
		c.Archived, c.Status, c.PDFURL, c.ExternalDocID, c.ExternalConnectionID, c.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: корреспонденция с таким id уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения корреспонденции: %w", err)
	}
	return nil
}

func (r *correspondenceRepo) GetByID(ctx context.Context, id string) (*model.Correspondence, error) {
	query := `SELECT ` + correspondenceColumns + ` FROM correspondences WHERE id = $1`

	return scanCorrespondence(r.db.QueryRow(ctx, query, id))
}

func (r *correspondenceRepo) GetLockState(ctx context.Context, id string) (*LockState, error) {
	query := `
		SELECT display_type, archived, status, version
		FROM correspondences
		WHERE id = $1`

	s := &LockState{}
	err := r.db.QueryRow(ctx, query, id).Scan(&s.DisplayType, &s.Archived, &s.Status, &s.Version)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения состояния блокировки: %w", err)
	}
	return s, nil
}

func (r *correspondenceRepo) Update(ctx context.Context, c *model.Correspondence, expectedVersion int64) error {
	// date, created_at и created_by не обновляются: они неизменяемы.
	query := `
		UPDATE correspondences SET
			number = $3, type = $4, subject = $5, content = $6,
			from_entity = $7, received_by_entity = $8, greeting = $9,
			responsible_person = $10, signature_url = $11, display_type = $12,
			attachments = $13, notes = $14, received_by = $15, received_at = $16,
			updated_at = $17, archived = $18, status = $19, pdf_url = $20,
			external_doc_id = $21, external_connection_id = $22,
			version = version + 1
		WHERE id = $1 AND version = $2`

	tag, err := r.db.Exec(ctx, query,
		c.ID, expectedVersion,
		c.Number, c.Type, c.Subject, c.Content,
		c.FromEntity, c.ReceivedByEntity, c.Greeting,
		c.ResponsiblePerson, c.SignatureURL, c.DisplayType,
		c.Attachments, c.Notes, c.ReceivedBy, c.ReceivedAt,
		c.UpdatedAt, c.Archived, c.Status, c.PDFURL,
		c.ExternalDocID, c.ExternalConnectionID,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления корреспонденции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо записи нет, либо версия устарела. Различаем отдельным запросом.
		if _, err := r.GetLockState(ctx, c.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *correspondenceRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*model.Correspondence, int64, error) {
	where, args := buildListWhere(filters)

	var total int64
	countQuery := `SELECT COUNT(*) FROM correspondences` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта корреспонденций: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM correspondences%s ORDER BY date DESC LIMIT $%d OFFSET $%d`,
		correspondenceColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка корреспонденций: %w", err)
	}
	defer rows.Close()

	var items []*model.Correspondence
	for rows.Next() {
		c, err := scanCorrespondence(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения строк корреспонденций: %w", err)
	}
	return items, total, nil
}

// buildListWhere собирает WHERE-условие из фильтров списка.
func buildListWhere(filters ListFilters) (string, []any) {
	var conds []string
	var args []any

	if filters.Type != nil {
		args = append(args, *filters.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filters.Archived != nil {
		args = append(args, *filters.Archived)
		conds = append(conds, fmt.Sprintf("archived = $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanCorrespondence читает одну строку в модель.
// Порядок колонок — как в correspondenceColumns.
func scanCorrespondence(row pgx.Row) (*model.Correspondence, error) {
	c := &model.Correspondence{}
	err := row.Scan(
		&c.ID, &c.Number, &c.Type, &c.Subject, &c.Content, &c.FromEntity, &c.ReceivedByEntity,
		&c.Date, &c.Greeting, &c.ResponsiblePerson, &c.SignatureURL, &c.DisplayType, &c.Attachments,
		&c.Notes, &c.ReceivedBy, &c.ReceivedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.Archived, &c.Status, &c.PDFURL, &c.ExternalDocID, &c.ExternalConnectionID, &c.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения корреспонденции: %w", err)
	}
	return c, nil
}
