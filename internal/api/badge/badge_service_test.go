package badge

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aulaplan/aulaplan/internal/types"
)

type MockBadgeRepo struct {
	mock.Mock
}

func (m *MockBadgeRepo) Create(ctx context.Context, createdBy uuid.UUID, params types.CreateBadgeParams) (*types.Badge, error) {
	args := m.Called(ctx, createdBy, params)
	var b *types.Badge
	if args.Get(0) != nil {
		b = args.Get(0).(*types.Badge)
	}
	return b, args.Error(1)
}

func (m *MockBadgeRepo) Get(ctx context.Context, id uuid.UUID) (*types.Badge, error) {
	args := m.Called(ctx, id)
	var b *types.Badge
	if args.Get(0) != nil {
		b = args.Get(0).(*types.Badge)
	}
	return b, args.Error(1)
}

func (m *MockBadgeRepo) ListActive(ctx context.Context) ([]types.Badge, error) {
	args := m.Called(ctx)
	var list []types.Badge
	if args.Get(0) != nil {
		list = args.Get(0).([]types.Badge)
	}
	return list, args.Error(1)
}

func (m *MockBadgeRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateBadgeParams) (*types.Badge, error) {
	args := m.Called(ctx, id, params)
	var b *types.Badge
	if args.Get(0) != nil {
		b = args.Get(0).(*types.Badge)
	}
	return b, args.Error(1)
}

func (m *MockBadgeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBadgeRepo) Assign(ctx context.Context, userID, badgeID uuid.UUID) (*types.UserBadge, error) {
	args := m.Called(ctx, userID, badgeID)
	var ub *types.UserBadge
	if args.Get(0) != nil {
		ub = args.Get(0).(*types.UserBadge)
	}
	return ub, args.Error(1)
}

func (m *MockBadgeRepo) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]types.UserBadge, error) {
	args := m.Called(ctx, userID)
	var list []types.UserBadge
	if args.Get(0) != nil {
		list = args.Get(0).([]types.UserBadge)
	}
	return list, args.Error(1)
}

func (m *MockBadgeRepo) UpdateProgress(ctx context.Context, userID, badgeID uuid.UUID, progress int) (*types.UserBadge, error) {
	args := m.Called(ctx, userID, badgeID, progress)
	var ub *types.UserBadge
	if args.Get(0) != nil {
		ub = args.Get(0).(*types.UserBadge)
	}
	return ub, args.Error(1)
}

func setupBadgeServiceTest(t *testing.T) (*MockBadgeRepo, *BadgeServiceImpl) {
	t.Helper()
	repo := new(MockBadgeRepo)
	svc := NewBadgeService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func TestBadgeServiceCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("second call is served from cache", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		catalog := []types.Badge{{Name: "Primer guía", Points: 10}}
		repo.On("ListActive", mock.Anything).Return(catalog, nil).Once()

		first, err := svc.Catalog(ctx)
		require.NoError(t, err)
		second, err := svc.Catalog(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		repo.AssertNumberOfCalls(t, "ListActive", 1)
	})

	t.Run("mutation invalidates the cache", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		badgeID := uuid.New()

		repo.On("ListActive", mock.Anything).Return([]types.Badge{}, nil).Twice()
		repo.On("Delete", mock.Anything, badgeID).Return(nil)

		_, err := svc.Catalog(ctx)
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, admin, badgeID))
		_, err = svc.Catalog(ctx)
		require.NoError(t, err)

		repo.AssertNumberOfCalls(t, "ListActive", 2)
	})
}

func TestBadgeServiceRoleGates(t *testing.T) {
	ctx := context.Background()
	instructor := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}

	t.Run("instructor cannot create", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		_, err := svc.Create(ctx, instructor, types.CreateBadgeParams{Name: "x"})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("instructor cannot assign", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		_, err := svc.Assign(ctx, instructor, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Assign")
	})
}

func TestBadgeServiceUpdateProgress(t *testing.T) {
	ctx := context.Background()
	admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
	userID, badgeID := uuid.New(), uuid.New()

	t.Run("progress out of range", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		_, err := svc.UpdateProgress(ctx, admin, userID, badgeID, 120)
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "UpdateProgress")
	})

	t.Run("reaching 100 completes the badge", func(t *testing.T) {
		repo, svc := setupBadgeServiceTest(t)
		repo.On("UpdateProgress", mock.Anything, userID, badgeID, 100).
			Return(&types.UserBadge{UserID: userID, BadgeID: badgeID, Progress: 100, IsCompleted: true}, nil)

		ub, err := svc.UpdateProgress(ctx, admin, userID, badgeID, 100)
		require.NoError(t, err)
		assert.True(t, ub.IsCompleted)
	})
}
