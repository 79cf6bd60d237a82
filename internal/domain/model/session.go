package model

import "time"

// Session — серверная сессия, привязанная к opaque bearer-токену.
// Хранится в таблице sessions. Записи никогда не изменяются:
// истечение определяется фильтрацией по expires_at.
type Session struct {
	// ID — UUID сессии
	ID string
	// UserID — идентификатор пользователя
	UserID int64
	// Token — opaque токен (crypto/rand, base64url)
	Token string
	// IssuedAt — время выдачи
	IssuedAt time.Time
	// ExpiresAt — время истечения
	ExpiresAt time.Time
}

// Expired проверяет, истекла ли сессия на момент now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
