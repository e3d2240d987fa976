package user

import (
	"strings"
	"testing"

	"devicesync/internal/domain/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsValidator_ValidateLogin(t *testing.T) {
	v := NewCredentialsValidator()

	tests := []struct {
		name    string
		login   string
		wantErr string
	}{
		{name: "latin with digits", login: "learner42"},
		{name: "separators", login: "first.last_name-2"},
		{name: "exactly min", login: "abc"},
		{name: "exactly max", login: strings.Repeat("z", MaxLoginLen)},
		{name: "cyrillic counts runes", login: "ёжик"},
		{name: "max cyrillic runes exceeds max bytes", login: strings.Repeat("я", MaxLoginLen)},
		{name: "two wide runes", login: "日本", wantErr: "at least 3 characters"},
		{name: "too short", login: "ab", wantErr: "at least 3 characters"},
		{name: "too long", login: strings.Repeat("я", MaxLoginLen+1), wantErr: "at most 32 characters"},
		{name: "space", login: "two words", wantErr: "can only contain"},
		{name: "at sign", login: "me@home", wantErr: "can only contain"},
		{name: "emoji", login: "fox🦊", wantErr: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateLogin(tt.login)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}
}

func TestCredentialsValidator_ValidatePassword(t *testing.T) {
	v := NewCredentialsValidator()

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "all classes", password: "Sync#2024"},
		{name: "cyrillic letters", password: "Пароль1!"},
		{name: "symbol counts as special", password: "Abcdef1+"},
		{name: "seven runes over eight bytes", password: "Пароль1", wantErr: "at least 8 characters"},
		{name: "no lowercase", password: "SYNC#2024", wantErr: "lowercase"},
		{name: "no uppercase", password: "sync#2024", wantErr: "uppercase"},
		{name: "no digit", password: "Sync#Sync", wantErr: "digit"},
		{name: "no special", password: "Sync2024x", wantErr: "special character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePassword(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}
}

func TestCredentialsValidator_RelaxedRules(t *testing.T) {
	v := &CredentialsValidator{}

	assert.NoError(t, v.ValidatePassword("lowercase"))
	assert.Error(t, v.ValidatePassword("short"))
}

func TestCredentialsValidator_ValidateRegister(t *testing.T) {
	v := NewCredentialsValidator()

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  string
	}{
		{name: "valid", login: "tablet_owner", password: "Sync#2024"},
		{name: "login checked first", login: "x", password: "weak", wantErr: "login validation failed"},
		{name: "weak password", login: "tablet_owner", password: "weak", wantErr: "password validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegister(tt.login, tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperr.Is(err, apperr.ValidationFailed))
		})
	}
}
