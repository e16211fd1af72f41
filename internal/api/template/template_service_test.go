package template

import (
	"context"
	"encoding/json"
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

type MockTemplateRepo struct {
	mock.Mock
}

func (m *MockTemplateRepo) Create(ctx context.Context, creatorID uuid.UUID, params types.CreateTemplateParams) (*types.Template, error) {
	args := m.Called(ctx, creatorID, params)
	var tpl *types.Template
	if args.Get(0) != nil {
		tpl = args.Get(0).(*types.Template)
	}
	return tpl, args.Error(1)
}

func (m *MockTemplateRepo) Get(ctx context.Context, id uuid.UUID) (*types.Template, error) {
	args := m.Called(ctx, id)
	var tpl *types.Template
	if args.Get(0) != nil {
		tpl = args.Get(0).(*types.Template)
	}
	return tpl, args.Error(1)
}

func (m *MockTemplateRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Template, int, error) {
	args := m.Called(ctx, filter, page, sort)
	var list []types.Template
	if args.Get(0) != nil {
		list = args.Get(0).([]types.Template)
	}
	return list, args.Int(1), args.Error(2)
}

func (m *MockTemplateRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateTemplateParams) (*types.Template, error) {
	args := m.Called(ctx, id, params)
	var tpl *types.Template
	if args.Get(0) != nil {
		tpl = args.Get(0).(*types.Template)
	}
	return tpl, args.Error(1)
}

func (m *MockTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func setupTemplateServiceTest(t *testing.T) (*MockTemplateRepo, *TemplateServiceImpl) {
	t.Helper()
	repo := new(MockTemplateRepo)
	svc := NewTemplateService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func TestTemplateServiceCreate(t *testing.T) {
	ctx := context.Background()
	admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}

	t.Run("instructor cannot create", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Create(ctx, p, types.CreateTemplateParams{Name: "x", Type: types.TemplateTypeGuide})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		_, err := svc.Create(ctx, admin, types.CreateTemplateParams{Name: "x", Type: "lesson"})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("admin creates a guide template", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		adminID := uuid.MustParse(admin.ID)
		params := types.CreateTemplateParams{
			Name:      "Guía estándar",
			Type:      types.TemplateTypeGuide,
			Structure: json.RawMessage(`{"sections":["introduccion","desarrollo"]}`),
		}
		created := &types.Template{ID: uuid.New(), Name: params.Name, Type: params.Type}
		repo.On("Create", mock.Anything, adminID, params).Return(created, nil)

		tpl, err := svc.Create(ctx, admin, params)
		require.NoError(t, err)
		assert.Equal(t, created.ID, tpl.ID)
	})
}

func TestTemplateServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("type filter reaches the repository", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			where, args := f.SQL(1)
			return where == "type = $1" && args[0] == types.TemplateTypeReport
		}), mock.Anything, mock.Anything).Return([]types.Template{}, 0, nil)

		_, _, err := svc.List(ctx, url.Values{"type": {types.TemplateTypeReport}})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestTemplateServiceUpdate(t *testing.T) {
	ctx := context.Background()
	admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
	id := uuid.New()

	t.Run("invalid type on update is rejected", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		bad := "lesson"
		_, err := svc.Update(ctx, admin, id, types.UpdateTemplateParams{Type: &bad})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("missing template surfaces not found", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		name := "Nueva"
		repo.On("Update", mock.Anything, id, mock.Anything).Return(nil, types.ErrNotFound)
		_, err := svc.Update(ctx, admin, id, types.UpdateTemplateParams{Name: &name})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestTemplateServiceDelete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("admin cannot delete", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		err := svc.Delete(ctx, admin, id)
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Delete")
	})

	t.Run("superadmin deletes", func(t *testing.T) {
		repo, svc := setupTemplateServiceTest(t)
		superadmin := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}
		repo.On("Delete", mock.Anything, id).Return(nil)
		require.NoError(t, svc.Delete(ctx, superadmin, id))
	})
}
