package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaplan/aulaplan/internal/types"
)

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	var user *types.User
	if args.Get(0) != nil {
		user = args.Get(0).(*types.User)
	}
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, id)
	var user *types.User
	if args.Get(0) != nil {
		user = args.Get(0).(*types.User)
	}
	return user, args.Error(1)
}

func (m *MockAuthRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	return m.Called(ctx, id, online).Error(0)
}

func setupAuthServiceTest(t *testing.T) (*MockAuthRepo, *AuthServiceImpl) {
	t.Helper()
	repo := new(MockAuthRepo)
	svc := NewAuthService(repo, newTestTokenService(time.Hour),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func activeUser(t *testing.T, password string) *types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &types.User{
		ID:           uuid.New(),
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: string(hash),
		Role:         types.RoleInstructor,
		Status:       types.UserStatusActive,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues verifiable token and marks online", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		user := activeUser(t, "secret123")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("SetOnline", mock.Anything, user.ID, true).Return(nil)

		token, got, err := svc.Login(ctx, user.Email, "secret123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		p, err := svc.tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, types.Principal{ID: user.ID.String(), Role: types.RoleInstructor}, p)
		repo.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound)

		_, _, err := svc.Login(ctx, "ghost@example.com", "whatever")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		user := activeUser(t, "secret123")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)

		_, _, err := svc.Login(ctx, user.Email, "wrong")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		repo.AssertNotCalled(t, "SetOnline")
	})

	t.Run("pending account", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		user := activeUser(t, "secret123")
		user.Status = types.UserStatusPending
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)

		_, _, err := svc.Login(ctx, user.Email, "secret123")
		assert.ErrorIs(t, err, ErrAccountPending)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("rejected account", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		user := activeUser(t, "secret123")
		user.Status = types.UserStatusRejected
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)

		_, _, err := svc.Login(ctx, user.Email, "secret123")
		assert.ErrorIs(t, err, ErrAccountRejected)
	})

	t.Run("presence failure does not block login", func(t *testing.T) {
		repo, svc := setupAuthServiceTest(t)
		user := activeUser(t, "secret123")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("SetOnline", mock.Anything, user.ID, true).Return(assert.AnError)

		token, _, err := svc.Login(ctx, user.Email, "secret123")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})
}

func TestAuthServiceLogout(t *testing.T) {
	repo, svc := setupAuthServiceTest(t)
	userID := uuid.New()
	repo.On("SetOnline", mock.Anything, userID, false).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), userID))
	repo.AssertExpectations(t)
}
