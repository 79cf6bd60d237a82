// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrUnauthenticated — запрос без действительной сессии.
	ErrUnauthenticated = errors.New("требуется аутентификация")
	// ErrSessionExpired — срок действия сессии истёк.
	ErrSessionExpired = errors.New("срок действия сессии истёк")
	// ErrForbidden — недостаточно прав.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrLocked — запись заблокирована (архив или отправлено),
	// изменение display_type невозможно.
	ErrLocked = errors.New("запись заблокирована — изменение типа отображения невозможно")
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrConflict — конкурентное изменение, запрос нужно повторить.
	ErrConflict = errors.New("конфликт — запись изменена конкурентным запросом")
	// ErrUnsupportedType — расширение файла не входит в список допустимых.
	ErrUnsupportedType = errors.New("недопустимый тип файла")
	// ErrFileTooLarge — файл превышает максимальный размер.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
)
