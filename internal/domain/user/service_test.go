package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, u *User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

const testPassword = "Secr3t!pass"

func newTestService(repo Repository) (*Service, *token.UserTokens) {
	tokens := token.NewUserTokens([]byte("user-secret"), time.Hour)
	s := NewService(repo, NewCredentialsValidator(), tokens, slog.Default())
	s.cost = bcrypt.MinCost
	return s, tokens
}

func TestService_Register(t *testing.T) {
	mockRepo := new(MockRepository)
	service, _ := newTestService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.Login == "testuser" && u.ID != "" &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(testPassword)) == nil
	})).Return(nil)

	u, err := service.Register(context.Background(), Credentials{Login: " testuser ", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "testuser", u.Login)
	assert.NotEmpty(t, u.ID)

	mockRepo.AssertExpectations(t)
}

func TestService_Register_Errors(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		password string
		wantKind apperr.Kind
	}{
		{name: "weak password", password: "weak", wantKind: apperr.ValidationFailed},
		{name: "login taken", password: testPassword, repoErr: apperr.E(apperr.Conflict, "duplicate"), wantKind: apperr.Conflict},
		{name: "database error", password: testPassword, repoErr: errors.New("database error"), wantKind: apperr.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service, _ := newTestService(mockRepo)
			mockRepo.On("Create", mock.Anything, mock.Anything).Return(tt.repoErr)

			_, err := service.Register(context.Background(), Credentials{Login: "testuser", Password: tt.password})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestService_Login(t *testing.T) {
	mockRepo := new(MockRepository)
	service, tokens := newTestService(mockRepo)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	mockRepo.On("FindByLogin", mock.Anything, "testuser").
		Return(&User{ID: "u-1", Login: "testuser", PasswordHash: string(hash)}, nil)
	mockRepo.On("FindByLogin", mock.Anything, "ghost").
		Return(nil, apperr.E(apperr.NotFound, "user not found"))

	sess, err := service.Login(context.Background(), Credentials{Login: "testuser", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)

	userID, err := tokens.Verify(sess.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	_, err = service.Login(context.Background(), Credentials{Login: "testuser", Password: "Wr0ng!pass"})
	assert.ErrorIs(t, err, ErrInvalidAuth)

	_, err = service.Login(context.Background(), Credentials{Login: "ghost", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidAuth)

	_, err = service.Login(context.Background(), Credentials{Login: "a b", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidAuth)
}
