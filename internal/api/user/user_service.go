package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

const (
	defaultPageSize   = 10
	minPasswordLength = 6
)

var validRoles = []string{types.RoleInstructor, types.RoleAdmin, types.RoleSuperadmin}

var _ UserService = (*UserServiceImpl)(nil)

type UserService interface {
	// Register creates an account. Superadmins start active and get a
	// token right away, everyone else waits for approval.
	Register(ctx context.Context, params types.RegisterUserParams) (*types.User, string, error)
	Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.User, error)
	List(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error)
	ListPending(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error)
	// ListAdmins requires superadmin.
	ListAdmins(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error)
	// UpdateStatus approves or rejects a pending account.
	UpdateStatus(ctx context.Context, p types.Principal, id uuid.UUID, status string) (*types.User, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepository
	tokens *auth.TokenService
}

func NewUserService(repo UserRepository, tokens *auth.TokenService, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: tokens,
	}
}

func (s *UserServiceImpl) Register(ctx context.Context, params types.RegisterUserParams) (*types.User, string, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.role", params.Role),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", params.Email))

	if strings.TrimSpace(params.Name) == "" {
		return nil, "", fmt.Errorf("empty name: %w", types.ErrValidation)
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, "", fmt.Errorf("invalid email: %w", types.ErrValidation)
	}
	if len(params.Password) < minPasswordLength {
		return nil, "", fmt.Errorf("password too short: %w", types.ErrValidation)
	}
	if !slices.Contains(validRoles, params.Role) {
		return nil, "", fmt.Errorf("invalid role %q: %w", params.Role, types.ErrValidation)
	}
	if params.Role == types.RoleAdmin && (params.Area == nil || strings.TrimSpace(*params.Area) == "") {
		return nil, "", fmt.Errorf("admin requires an area: %w", types.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	status := types.UserStatusPending
	if params.Role == types.RoleSuperadmin {
		status = types.UserStatusActive
	}

	u, err := s.repo.Create(ctx, params, string(hash), status)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, "", err
		}
		l.ErrorContext(ctx, "Failed to register user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to register user")
		return nil, "", fmt.Errorf("registering user: %w", err)
	}

	var token string
	if u.Status == types.UserStatusActive {
		token, err = s.tokens.Issue(types.Principal{ID: u.ID.String(), Role: u.Role})
		if err != nil {
			l.ErrorContext(ctx, "Failed to issue token after registration", slog.Any("error", err))
			span.RecordError(err)
			return nil, "", fmt.Errorf("issuing token: %w", err)
		}
	}

	l.InfoContext(ctx, "User registered",
		slog.String("userID", u.ID.String()), slog.String("status", u.Status))
	return u, token, nil
}

func (s *UserServiceImpl) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("user.id", id.String()),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) && p.ID != id.String() {
		return nil, types.ErrForbidden
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch user")
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	// Admins manage instructors only.
	if p.Role == types.RoleAdmin && p.ID != id.String() && u.Role != types.RoleInstructor {
		return nil, types.ErrForbidden
	}
	return u, nil
}

func (s *UserServiceImpl) List(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.PageMeta{}, types.ErrForbidden
	}
	filter := search.BuildSearchQuery(params,
		[]string{"name", "email"},
		[]string{"role", "status", "area"},
		nil,
		nil,
	)
	if p.Role == types.RoleAdmin {
		filter.Append("role = $%d", types.RoleInstructor)
	}
	return s.list(ctx, span, filter, params)
}

func (s *UserServiceImpl) ListPending(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListPending", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.PageMeta{}, types.ErrForbidden
	}
	var filter search.Filter
	filter.Append("status = $%d", types.UserStatusPending)
	if p.Role == types.RoleAdmin {
		filter.Append("role = $%d", types.RoleInstructor)
	}
	return s.list(ctx, span, filter, params)
}

func (s *UserServiceImpl) ListAdmins(ctx context.Context, p types.Principal, params url.Values) ([]types.User, types.PageMeta, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListAdmins", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if p.Role != types.RoleSuperadmin {
		return nil, types.PageMeta{}, types.ErrForbidden
	}
	var filter search.Filter
	filter.Append("role = $%d", types.RoleAdmin)
	if status := params.Get("status"); status != "" {
		filter.Append("status = $%d", status)
	}
	return s.list(ctx, span, filter, params)
}

func (s *UserServiceImpl) list(ctx context.Context, span trace.Span, filter search.Filter, params url.Values) ([]types.User, types.PageMeta, error) {
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	users, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list users")
		return nil, types.PageMeta{}, fmt.Errorf("listing users: %w", err)
	}
	return users, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *UserServiceImpl) UpdateStatus(ctx context.Context, p types.Principal, id uuid.UUID, status string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("user.id", id.String()),
		attribute.String("user.status", status),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if status != types.UserStatusActive && status != types.UserStatusRejected {
		return nil, fmt.Errorf("invalid status %q: %w", status, types.ErrValidation)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	// Admins approve instructors only, superadmins approve anyone.
	if p.Role == types.RoleAdmin && current.Role != types.RoleInstructor {
		return nil, types.ErrForbidden
	}

	u, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update user status")
		}
		return nil, fmt.Errorf("updating user status: %w", err)
	}

	s.logger.InfoContext(ctx, "User status updated",
		slog.String("userID", id.String()),
		slog.String("status", status),
		slog.String("updatedBy", p.ID))
	return u, nil
}
