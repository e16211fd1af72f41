package activity

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Create(ctx context.Context, instructorID uuid.UUID, params types.CreateActivityParams) (*types.Activity, error) {
	args := m.Called(ctx, instructorID, params)
	var a *types.Activity
	if args.Get(0) != nil {
		a = args.Get(0).(*types.Activity)
	}
	return a, args.Error(1)
}

func (m *MockActivityRepo) Get(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	args := m.Called(ctx, id)
	var a *types.Activity
	if args.Get(0) != nil {
		a = args.Get(0).(*types.Activity)
	}
	return a, args.Error(1)
}

func (m *MockActivityRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Activity, int, error) {
	args := m.Called(ctx, filter, page, sort)
	var list []types.Activity
	if args.Get(0) != nil {
		list = args.Get(0).([]types.Activity)
	}
	return list, args.Int(1), args.Error(2)
}

func (m *MockActivityRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateActivityParams) (*types.Activity, error) {
	args := m.Called(ctx, id, params)
	var a *types.Activity
	if args.Get(0) != nil {
		a = args.Get(0).(*types.Activity)
	}
	return a, args.Error(1)
}

func (m *MockActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func setupActivityServiceTest(t *testing.T) (*MockActivityRepo, *ActivityServiceImpl) {
	t.Helper()
	repo := new(MockActivityRepo)
	svc := NewActivityService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func TestActivityServiceList(t *testing.T) {
	ctx := context.Background()
	instructorID := uuid.New()

	t.Run("instructor is scoped to own activities", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		p := types.Principal{ID: instructorID.String(), Role: types.RoleInstructor}

		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			sql, args := f.SQL(1)
			return sql == "instructor_id = $1" && args[0] == instructorID.String()
		}), mock.Anything, mock.Anything).Return([]types.Activity{}, 0, nil)

		_, _, err := svc.List(ctx, p, url.Values{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}

		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			return f.Empty()
		}), mock.Anything, mock.Anything).Return([]types.Activity{{Title: "a"}}, 23, nil)

		_, meta, err := svc.List(ctx, p, url.Values{"page": {"2"}, "limit": {"5"}})
		require.NoError(t, err)
		assert.Equal(t, types.PageMeta{Total: 23, Page: 2, Limit: 5, Pages: 5}, meta)
	})

	t.Run("filters pass through the builder", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}

		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			sql, _ := f.SQL(1)
			return sql == "title ILIKE $1 AND status = $2"
		}), mock.Anything, mock.Anything).Return(nil, 0, nil)

		_, _, err := svc.List(ctx, p, url.Values{"title": {"taller"}, "status": {"pending"}})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestActivityServiceOwnership(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	activityID := uuid.New()
	stored := &types.Activity{ID: activityID, Title: "Clase", InstructorID: ownerID}

	t.Run("owner may update", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		repo.On("Get", mock.Anything, activityID).Return(stored, nil)
		repo.On("Update", mock.Anything, activityID, mock.Anything).Return(stored, nil)

		p := types.Principal{ID: ownerID.String(), Role: types.RoleInstructor}
		_, err := svc.Update(ctx, p, activityID, types.UpdateActivityParams{Title: "Nueva"})
		require.NoError(t, err)
	})

	t.Run("another instructor may not", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		repo.On("Get", mock.Anything, activityID).Return(stored, nil)

		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Update(ctx, p, activityID, types.UpdateActivityParams{})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("admin may delete someone else's activity", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		repo.On("Get", mock.Anything, activityID).Return(stored, nil)
		repo.On("Delete", mock.Anything, activityID).Return(nil)

		p := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		require.NoError(t, svc.Delete(ctx, p, activityID))
	})
}

func TestActivityServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("title required", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}

		_, err := svc.Create(ctx, p, types.CreateActivityParams{Title: "   "})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("activity belongs to the caller", func(t *testing.T) {
		repo, svc := setupActivityServiceTest(t)
		instructorID := uuid.New()
		p := types.Principal{ID: instructorID.String(), Role: types.RoleInstructor}
		repo.On("Create", mock.Anything, instructorID, mock.Anything).
			Return(&types.Activity{Title: "Taller"}, nil)

		got, err := svc.Create(ctx, p, types.CreateActivityParams{Title: "Taller"})
		require.NoError(t, err)
		assert.Equal(t, "Taller", got.Title)
		repo.AssertExpectations(t)
	})
}
