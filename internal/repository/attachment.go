package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
)

// attachmentColumns — список колонок для SELECT, порядок совпадает со scanAttachment.
const attachmentColumns = `id, file_name, content_hash, size_bytes, mime_type, kind,
	storage_path, uploaded_by, uploaded_at`

// AttachmentRepository — доступ к таблице attachments.
// Записи append-only: только вставка и чтение.
type AttachmentRepository interface {
	// Insert сохраняет запись вложения. При нарушении уникальности
	// (частичный индекс дедупликации) возвращает ErrConflict.
	Insert(ctx context.Context, a *model.Attachment) error
	// InsertOrGet атомарно сохраняет запись вложения (kind=attachment)
	// либо, если вложение с тем же content_hash уже существует,
	// возвращает существующую запись и true. Вставка и чтение
	// победителя выполняются в одной транзакции.
	InsertOrGet(ctx context.Context, a *model.Attachment) (*model.Attachment, bool, error)
	// GetByID возвращает вложение по идентификатору.
	GetByID(ctx context.Context, id string) (*model.Attachment, error)
	// GetByContentHash возвращает вложение вида attachment по хэшу содержимого.
	GetByContentHash(ctx context.Context, hash string) (*model.Attachment, error)
}

// attachmentRepo — реализация AttachmentRepository.
type attachmentRepo struct {
	db DBTX
	tx *TxRunner
}

// NewAttachmentRepository создаёт репозиторий вложений.
// Принимает пул (а не DBTX): InsertOrGet открывает собственную транзакцию.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepo{db: pool, tx: NewTxRunner(pool)}
}

const insertAttachmentQuery = `
	INSERT INTO attachments (
		id, file_name, content_hash, size_bytes, mime_type, kind,
		storage_path, uploaded_by, uploaded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *attachmentRepo) Insert(ctx context.Context, a *model.Attachment) error {
	_, err := r.db.Exec(ctx, insertAttachmentQuery,
		a.ID, a.FileName, a.ContentHash, a.SizeBytes, a.MimeType, a.Kind,
		a.StoragePath, a.UploadedBy, a.UploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: вложение с таким содержимым уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения вложения: %w", err)
	}
	return nil
}

func (r *attachmentRepo) InsertOrGet(ctx context.Context, a *model.Attachment) (*model.Attachment, bool, error) {
	// ON CONFLICT по частичному индексу дедупликации: конкурентная
	// вставка тех же байт не ломает транзакцию, а превращается в no-op.
	insertQuery := insertAttachmentQuery + `
	ON CONFLICT (content_hash) WHERE kind = 'attachment' DO NOTHING`
	selectQuery := `SELECT ` + attachmentColumns + ` FROM attachments
		WHERE content_hash = $1 AND kind = $2`

	var winner *model.Attachment
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertQuery,
			a.ID, a.FileName, a.ContentHash, a.SizeBytes, a.MimeType, a.Kind,
			a.StoragePath, a.UploadedBy, a.UploadedAt,
		)
		if err != nil {
			return fmt.Errorf("ошибка сохранения вложения: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		w, err := scanAttachment(tx.QueryRow(ctx, selectQuery, a.ContentHash, model.KindAttachment))
		if err != nil {
			return err
		}
		winner = w
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if winner != nil {
		return winner, true, nil
	}
	return a, false, nil
}

func (r *attachmentRepo) GetByID(ctx context.Context, id string) (*model.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`

	return scanAttachment(r.db.QueryRow(ctx, query, id))
}

func (r *attachmentRepo) GetByContentHash(ctx context.Context, hash string) (*model.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments
		WHERE content_hash = $1 AND kind = $2`

	return scanAttachment(r.db.QueryRow(ctx, query, hash, model.KindAttachment))
}

func scanAttachment(row pgx.Row) (*model.Attachment, error) {
	a := &model.Attachment{}
	err := row.Scan(
		&a.ID, &a.FileName, &a.ContentHash, &a.SizeBytes, &a.MimeType, &a.Kind,
		&a.StoragePath, &a.UploadedBy, &a.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения вложения: %w", err)
	}
	return a, nil
}
