package user

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaplan/aulaplan/config"
	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, params types.RegisterUserParams, passwordHash, status string) (*types.User, error) {
	args := m.Called(ctx, params, passwordHash, status)
	var u *types.User
	if args.Get(0) != nil {
		u = args.Get(0).(*types.User)
	}
	return u, args.Error(1)
}

func (m *MockUserRepo) Get(ctx context.Context, id uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, id)
	var u *types.User
	if args.Get(0) != nil {
		u = args.Get(0).(*types.User)
	}
	return u, args.Error(1)
}

func (m *MockUserRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.User, int, error) {
	args := m.Called(ctx, filter, page, sort)
	var list []types.User
	if args.Get(0) != nil {
		list = args.Get(0).([]types.User)
	}
	return list, args.Int(1), args.Error(2)
}

func (m *MockUserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*types.User, error) {
	args := m.Called(ctx, id, status)
	var u *types.User
	if args.Get(0) != nil {
		u = args.Get(0).(*types.User)
	}
	return u, args.Error(1)
}

func setupUserServiceTest(t *testing.T) (*MockUserRepo, *UserServiceImpl) {
	t.Helper()
	repo := new(MockUserRepo)
	tokens := auth.NewTokenService(config.JWTConfig{
		SecretKey:  "test-secret",
		Expiration: time.Hour,
		Issuer:     "aulaplan-test",
	})
	svc := NewUserService(repo, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func strPtr(s string) *string { return &s }

func TestUserServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("instructor starts pending without a token", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		params := types.RegisterUserParams{
			Name: "Ana", Email: "ana@example.com", Password: "secreto1", Role: types.RoleInstructor,
		}
		repo.On("Create", mock.Anything, params, mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("secreto1")) == nil
		}), types.UserStatusPending).Return(&types.User{
			ID: uuid.New(), Name: "Ana", Email: params.Email,
			Role: types.RoleInstructor, Status: types.UserStatusPending,
		}, nil)

		u, token, err := svc.Register(ctx, params)
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Equal(t, types.UserStatusPending, u.Status)
	})

	t.Run("superadmin starts active with a token", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		params := types.RegisterUserParams{
			Name: "Root", Email: "root@example.com", Password: "secreto1", Role: types.RoleSuperadmin,
		}
		repo.On("Create", mock.Anything, params, mock.Anything, types.UserStatusActive).Return(&types.User{
			ID: uuid.New(), Role: types.RoleSuperadmin, Status: types.UserStatusActive,
		}, nil)

		u, token, err := svc.Register(ctx, params)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, types.UserStatusActive, u.Status)
	})

	t.Run("admin without area is rejected", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		_, _, err := svc.Register(ctx, types.RegisterUserParams{
			Name: "Eva", Email: "eva@example.com", Password: "secreto1", Role: types.RoleAdmin,
		})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("short password is rejected", func(t *testing.T) {
		_, svc := setupUserServiceTest(t)
		_, _, err := svc.Register(ctx, types.RegisterUserParams{
			Name: "Eva", Email: "eva@example.com", Password: "abc", Role: types.RoleInstructor,
		})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("duplicate email surfaces a conflict", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		params := types.RegisterUserParams{
			Name: "Ana", Email: "ana@example.com", Password: "secreto1", Role: types.RoleInstructor,
		}
		repo.On("Create", mock.Anything, params, mock.Anything, types.UserStatusPending).
			Return(nil, types.ErrConflict)

		_, _, err := svc.Register(ctx, params)
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestUserServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("admin listing is scoped to instructors", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			where, args := f.SQL(1)
			return strings.Contains(where, "role = $") && args[len(args)-1] == types.RoleInstructor
		}), mock.Anything, mock.Anything).Return([]types.User{}, 0, nil)

		_, _, err := svc.List(ctx, admin, url.Values{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("instructor cannot list users", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, _, err := svc.List(ctx, p, url.Values{})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "List")
	})

	t.Run("admins listing requires superadmin", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		_, _, err := svc.ListAdmins(ctx, admin, url.Values{})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "List")
	})

	t.Run("pending listing filters on status", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		superadmin := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}
		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			where, args := f.SQL(1)
			return where == "status = $1" && args[0] == types.UserStatusPending
		}), mock.Anything, mock.Anything).Return([]types.User{}, 0, nil)

		_, _, err := svc.ListPending(ctx, superadmin, url.Values{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestUserServiceUpdateStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("admin cannot approve another admin", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		repo.On("Get", mock.Anything, id).Return(&types.User{
			ID: id, Role: types.RoleAdmin, Area: strPtr("ciencias"), Status: types.UserStatusPending,
		}, nil)

		_, err := svc.UpdateStatus(ctx, admin, id, types.UserStatusActive)
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "UpdateStatus")
	})

	t.Run("superadmin approves an admin", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		superadmin := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}
		repo.On("Get", mock.Anything, id).Return(&types.User{
			ID: id, Role: types.RoleAdmin, Status: types.UserStatusPending,
		}, nil)
		repo.On("UpdateStatus", mock.Anything, id, types.UserStatusActive).Return(&types.User{
			ID: id, Role: types.RoleAdmin, Status: types.UserStatusActive,
		}, nil)

		u, err := svc.UpdateStatus(ctx, superadmin, id, types.UserStatusActive)
		require.NoError(t, err)
		assert.Equal(t, types.UserStatusActive, u.Status)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		repo, svc := setupUserServiceTest(t)
		superadmin := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}
		_, err := svc.UpdateStatus(ctx, superadmin, id, "banned")
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "UpdateStatus")
	})
}
