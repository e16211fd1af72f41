package feedback

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

type MockFeedbackRepo struct {
	mock.Mock
}

func (m *MockFeedbackRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateFeedbackParams) (*types.Feedback, error) {
	args := m.Called(ctx, userID, params)
	var fb *types.Feedback
	if args.Get(0) != nil {
		fb = args.Get(0).(*types.Feedback)
	}
	return fb, args.Error(1)
}

func (m *MockFeedbackRepo) Get(ctx context.Context, id uuid.UUID) (*types.Feedback, error) {
	args := m.Called(ctx, id)
	var fb *types.Feedback
	if args.Get(0) != nil {
		fb = args.Get(0).(*types.Feedback)
	}
	return fb, args.Error(1)
}

func (m *MockFeedbackRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Feedback, int, error) {
	args := m.Called(ctx, filter, page, sort)
	var list []types.Feedback
	if args.Get(0) != nil {
		list = args.Get(0).([]types.Feedback)
	}
	return list, args.Int(1), args.Error(2)
}

func (m *MockFeedbackRepo) Respond(ctx context.Context, id, respondedBy uuid.UUID, text, status string) (*types.Feedback, error) {
	args := m.Called(ctx, id, respondedBy, text, status)
	var fb *types.Feedback
	if args.Get(0) != nil {
		fb = args.Get(0).(*types.Feedback)
	}
	return fb, args.Error(1)
}

func (m *MockFeedbackRepo) TargetExists(ctx context.Context, targetType string, targetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, targetType, targetID)
	return args.Bool(0), args.Error(1)
}

func setupFeedbackServiceTest(t *testing.T) (*MockFeedbackRepo, *FeedbackServiceImpl) {
	t.Helper()
	repo := new(MockFeedbackRepo)
	svc := NewFeedbackService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, svc
}

func intPtr(v int) *int { return &v }

func TestFeedbackServiceCreate(t *testing.T) {
	ctx := context.Background()
	instructor := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}

	t.Run("guide feedback requires an existing target", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		targetID := uuid.New()
		repo.On("TargetExists", mock.Anything, types.FeedbackTargetGuide, targetID).Return(false, nil)

		_, err := svc.Create(ctx, instructor, types.CreateFeedbackParams{
			TargetType: types.FeedbackTargetGuide,
			TargetID:   &targetID,
			Rating:     intPtr(4),
			Comment:    "Muy clara",
		})
		assert.ErrorIs(t, err, types.ErrNotFound)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("guide feedback requires a rating", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		targetID := uuid.New()

		_, err := svc.Create(ctx, instructor, types.CreateFeedbackParams{
			TargetType: types.FeedbackTargetGuide,
			TargetID:   &targetID,
			Comment:    "Sin nota",
		})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "TargetExists")
	})

	t.Run("rating outside 1..5 is rejected", func(t *testing.T) {
		_, svc := setupFeedbackServiceTest(t)
		targetID := uuid.New()

		_, err := svc.Create(ctx, instructor, types.CreateFeedbackParams{
			TargetType: types.FeedbackTargetActivity,
			TargetID:   &targetID,
			Rating:     intPtr(6),
			Comment:    "x",
		})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("system feedback needs no target nor rating", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		userID := uuid.MustParse(instructor.ID)
		created := &types.Feedback{ID: uuid.New(), UserID: userID, TargetType: types.FeedbackTargetSystem}
		repo.On("Create", mock.Anything, userID, mock.MatchedBy(func(p types.CreateFeedbackParams) bool {
			return p.TargetType == types.FeedbackTargetSystem && p.TargetID == nil
		})).Return(created, nil)

		fb, err := svc.Create(ctx, instructor, types.CreateFeedbackParams{
			TargetType: types.FeedbackTargetSystem,
			Comment:    "El calendario va lento",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, fb.ID)
		repo.AssertNotCalled(t, "TargetExists")
	})

	t.Run("unknown target type is rejected", func(t *testing.T) {
		_, svc := setupFeedbackServiceTest(t)
		_, err := svc.Create(ctx, instructor, types.CreateFeedbackParams{
			TargetType: "course",
			Comment:    "x",
		})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestFeedbackServiceGet(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	owner := uuid.New()
	stored := &types.Feedback{ID: id, UserID: owner, TargetType: types.FeedbackTargetSystem}

	t.Run("instructor cannot read another user's feedback", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		repo.On("Get", mock.Anything, id).Return(stored, nil)

		other := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Get(ctx, other, id)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("admin reads any feedback", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		repo.On("Get", mock.Anything, id).Return(stored, nil)

		admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}
		fb, err := svc.Get(ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, id, fb.ID)
	})
}

func TestFeedbackServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("instructor is rejected from the admin view", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, _, err := svc.List(ctx, p, url.Values{})
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "List")
	})

	t.Run("own listing is scoped to the caller", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		repo.On("List", mock.Anything, mock.MatchedBy(func(f search.Filter) bool {
			where, args := f.SQL(1)
			return strings.Contains(where, "user_id = $1") && len(args) == 1 && args[0] == p.ID
		}), mock.Anything, mock.Anything).Return([]types.Feedback{}, 0, nil)

		_, _, err := svc.ListMine(ctx, p, url.Values{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestFeedbackServiceRespond(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	admin := types.Principal{ID: uuid.NewString(), Role: types.RoleAdmin}

	t.Run("instructor cannot respond", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		p := types.Principal{ID: uuid.NewString(), Role: types.RoleInstructor}
		_, err := svc.Respond(ctx, p, id, "gracias", "")
		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "Respond")
	})

	t.Run("empty status defaults to reviewed", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		adminID := uuid.MustParse(admin.ID)
		repo.On("Respond", mock.Anything, id, adminID, "gracias", types.FeedbackStatusReviewed).
			Return(&types.Feedback{ID: id, Status: types.FeedbackStatusReviewed}, nil)

		fb, err := svc.Respond(ctx, admin, id, "gracias", "")
		require.NoError(t, err)
		assert.Equal(t, types.FeedbackStatusReviewed, fb.Status)
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		repo, svc := setupFeedbackServiceTest(t)
		_, err := svc.Respond(ctx, admin, id, "gracias", "archived")
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Respond")
	})
}
