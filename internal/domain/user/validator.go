package user

import (
	"unicode"

	"devicesync/internal/domain/apperr"
)

const (
	MinLoginLen    = 3
	MaxLoginLen    = 32
	MinPasswordLen = 8
)

// Validator - интерфейс для валидации учетных данных
type Validator interface {
	ValidateRegister(login, password string) error
	ValidateLogin(login string) error
	ValidatePassword(password string) error
}

// CredentialsValidator проверяет логин и сложность пароля
type CredentialsValidator struct {
	requireSpecialChar bool
	requireDigit       bool
	requireUpper       bool
	requireLower       bool
}

// NewCredentialsValidator создает валидатор со всеми требованиями к паролю
func NewCredentialsValidator() *CredentialsValidator {
	return &CredentialsValidator{
		requireSpecialChar: true,
		requireDigit:       true,
		requireUpper:       true,
		requireLower:       true,
	}
}

func (v *CredentialsValidator) ValidateRegister(login, password string) error {
	if err := v.ValidateLogin(login); err != nil {
		return apperr.Wrap(apperr.ValidationFailed, "login validation failed", err)
	}
	if err := v.ValidatePassword(password); err != nil {
		return apperr.Wrap(apperr.ValidationFailed, "password validation failed", err)
	}
	return nil
}

func (v *CredentialsValidator) ValidateLogin(login string) error {
	n := len([]rune(login))
	if n < MinLoginLen {
		return invalid("login must be at least 3 characters")
	}
	if n > MaxLoginLen {
		return invalid("login must be at most 32 characters")
	}

	for _, r := range login {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return invalid("login can only contain letters, digits, '_', '-', '.'")
		}
	}
	return nil
}

func (v *CredentialsValidator) ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLen {
		return invalid("password must be at least 8 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case v.requireLower && !hasLower:
		return invalid("password must contain at least one lowercase letter")
	case v.requireUpper && !hasUpper:
		return invalid("password must contain at least one uppercase letter")
	case v.requireDigit && !hasDigit:
		return invalid("password must contain at least one digit")
	case v.requireSpecialChar && !hasSpecial:
		return invalid("password must contain at least one special character")
	}
	return nil
}

func invalid(msg string) error {
	return apperr.E(apperr.ValidationFailed, msg)
}
