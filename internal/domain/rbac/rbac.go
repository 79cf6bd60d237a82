// Пакет rbac — роли пользователей и их сравнение.
// Роль хранится в таблице user_roles (ноль или одна запись на
// пользователя); отсутствие записи означает роль user.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// DefaultRole — роль по умолчанию при отсутствии записи в user_roles.
const DefaultRole = RoleUser

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// Normalize возвращает роль, если она допустима, иначе DefaultRole.
// Некорректное значение в БД не должно давать привилегий.
func Normalize(role string) string {
	if IsValidRole(role) {
		return role
	}
	return DefaultRole
}

// Allowed проверяет, входит ли роль в набор допустимых.
func Allowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
