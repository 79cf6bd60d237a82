package model

import "time"

// User — учётная запись пользователя.
// Создание и редактирование пользователей — внешняя подсистема,
// здесь запись только читается при аутентификации.
type User struct {
	// ID — идентификатор пользователя
	ID int64
	// Username — логин
	Username string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// FullName — полное имя
	FullName string
	// EntityID — идентификатор организационной единицы
	EntityID string
	// EntityName — название организационной единицы
	EntityName string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// Identity — разрешённая личность запроса: пользователь + его роль.
// Формируется AuthService.Resolve и помещается в контекст запроса.
type Identity struct {
	// UserID — идентификатор пользователя
	UserID int64
	// Username — логин
	Username string
	// FullName — полное имя
	FullName string
	// EntityID — идентификатор организационной единицы
	EntityID string
	// EntityName — название организационной единицы
	EntityName string
	// Role — эффективная роль (admin, moderator, user)
	Role string
}
