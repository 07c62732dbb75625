package domain

// Role: роль пользователя, которую сообщает провайдер аутентификации.
type Role string

const (
	RoleBuyer     Role = "buyer"
	RoleSeller    Role = "seller"
	RoleAdmin     Role = "admin"
	RoleLogistics Role = "logistics"
)

// Valid проверяет роль.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleLogistics:
		return true
	default:
		return false
	}
}

// Actor: вызывающий операцию пользователь. Передаётся явно в каждую операцию ядра.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin сообщает, что проверки владения для актора не применяются.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Validate проверяет, что идентичность актора заполнена.
func (a Actor) Validate() error {
	if a.UserID == "" || !a.Role.Valid() {
		return ErrUnauthorized
	}
	return nil
}
