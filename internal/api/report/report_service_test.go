package report

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

type MockReportRepo struct {
	mock.Mock
}

func (m *MockReportRepo) Create(ctx context.Context, creatorID uuid.UUID, params types.CreateReportParams) (*types.Report, error) {
	args := m.Called(ctx, creatorID, params)
	var rep *types.Report
	if args.Get(0) != nil {
		rep = args.Get(0).(*types.Report)
	}
	return rep, args.Error(1)
}

func (m *MockReportRepo) Get(ctx context.Context, id uuid.UUID) (*types.Report, error) {
	args := m.Called(ctx, id)
	var rep *types.Report
	if args.Get(0) != nil {
		rep = args.Get(0).(*types.Report)
	}
	return rep, args.Error(1)
}

func (m *MockReportRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Report, int, error) {
	args := m.Called(ctx, filter, page, sort)
	var list []types.Report
	if args.Get(0) != nil {
		list = args.Get(0).([]types.Report)
	}
	return list, args.Int(1), args.Error(2)
}

func (m *MockReportRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func setupReportServiceTest(t *testing.T) (*MockReportRepo, *ReportServiceImpl) {
	t.Helper()
	repo := new(MockReportRepo)
	svc := NewReportService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func TestReportServiceCreate(t *testing.T) {
	ctx := context.Background()
	admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}

	t.Run("instructor cannot create", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Create(ctx, p, types.CreateReportParams{
			Title: "x", Type: types.ReportTypeGeneral, Format: types.ReportFormatPDF,
		})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("unknown format is rejected", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		_, err := svc.Create(ctx, admin, types.CreateReportParams{
			Title: "x", Type: types.ReportTypeGeneral, Format: "docx",
		})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("admin creates a report", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		adminID := uuid.MustParse(admin.ID)
		params := types.CreateReportParams{
			Title: "Actividad mensual", Type: types.ReportTypeActivity, Format: types.ReportFormatExcel,
		}
		created := &types.Report{ID: uuid.New(), Title: params.Title, CreatorID: adminID}
		repo.On("Create", mock.Anything, adminID, params).Return(created, nil)

		rep, err := svc.Create(ctx, admin, params)
		require.NoError(t, err)
		assert.Equal(t, created.ID, rep.ID)
	})
}

func TestReportServiceGet(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	creator := uuid.New()
	stored := &types.Report{ID: id, CreatorID: creator}

	t.Run("instructor cannot read another creator's report", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		repo.On("Get", mock.Anything, id).Return(stored, nil)

		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Get(ctx, p, id)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("creator reads their own report", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		repo.On("Get", mock.Anything, id).Return(stored, nil)

		p := types.Principal{ID: creator.String(), Role: types.RoleInstructor}
		rep, err := svc.Get(ctx, p, id)
		require.NoError(t, err)
		assert.Equal(t, id, rep.ID)
	})
}

func TestReportServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("instructor listing is scoped to their reports", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			where, args := f.SQL(1)
			return strings.Contains(where, "creator_id = $") && args[len(args)-1] == p.ID
		}), mock.Anything, mock.Anything).Return([]types.Report{}, 0, nil)

		_, _, err := svc.List(ctx, p, url.Values{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestReportServiceDelete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("admin cannot delete", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		err := svc.Delete(ctx, admin, id)
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Delete")
	})

	t.Run("superadmin deletes", func(t *testing.T) {
		repo, svc := setupReportServiceTest(t)
		superadmin := types.Principal{ID: uuid.NewString(), Role: types.RoleSuperadmin}
		repo.On("Delete", mock.Anything, id).Return(nil)
		require.NoError(t, svc.Delete(ctx, superadmin, id))
	})
}
