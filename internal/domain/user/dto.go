package user

import "devicesync/internal/domain/token"

// Credentials логин и пароль пользователя
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Session результат входа: пользовательский токен для управления устройствами
type Session struct {
	UserID string      `json:"user_id"`
	Login  string      `json:"login"`
	Token  token.Token `json:"token"`
}
