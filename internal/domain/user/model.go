package user

import "time"

// User учетная запись локального провайдера идентификации
type User struct {
	ID           string
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}
