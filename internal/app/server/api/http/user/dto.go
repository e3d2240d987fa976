package user

import (
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/user"
)

type credentialsInput struct {
	Body user.Credentials
}

type registerOutput struct {
	Body response.Envelope[RegisterResponse]
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Login  string `json:"login"`
}

type loginOutput struct {
	Body response.Envelope[*user.Session]
}
