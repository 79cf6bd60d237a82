package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
)

// SessionRepository — доступ к таблице sessions.
// Сессии append-only: Insert и поиск по токену, без Update/Delete.
type SessionRepository interface {
	// Insert сохраняет новую сессию.
	Insert(ctx context.Context, s *model.Session) error
	// GetByToken возвращает сессию по токену.
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

// sessionRepo — реализация SessionRepository.
type sessionRepo struct {
	db DBTX
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Insert(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, s.ID, s.UserID, s.Token, s.IssuedAt, s.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: сессия с таким токеном уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	query := `
		SELECT id, user_id, token, issued_at, expires_at
		FROM sessions
		WHERE token = $1`

	s := &model.Session{}
	err := r.db.QueryRow(ctx, query, token).Scan(
		&s.ID, &s.UserID, &s.Token, &s.IssuedAt, &s.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return s, nil
}
