package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
)

// UserRepository — чтение пользователей и их ролей.
// Создание и редактирование пользователей — внешняя подсистема.
type UserRepository interface {
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	// GetByUsername возвращает пользователя по логину.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetRole возвращает роль пользователя из user_roles.
	// При отсутствии записи возвращает ErrNotFound.
	GetRole(ctx context.Context, userID int64) (string, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, full_name, entity_id, entity_name, created_at
		FROM users
		WHERE id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, userID))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, full_name, entity_id, entity_name, created_at
		FROM users
		WHERE username = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *userRepo) GetRole(ctx context.Context, userID int64) (string, error) {
	query := `
		SELECT role
		FROM user_roles
		WHERE user_id = $1`

	var role string
	err := r.db.QueryRow(ctx, query, userID).Scan(&role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения роли: %w", err)
	}
	return role, nil
}

func (r *userRepo) scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FullName,
		&u.EntityID, &u.EntityName, &u.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
