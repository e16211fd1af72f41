package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaplan/aulaplan/internal/types"
)

// Account status failures carry their own sentinel so the handler can pick
// the right message.
var (
	ErrAccountPending  = fmt.Errorf("account pending approval: %w", types.ErrForbidden)
	ErrAccountRejected = fmt.Errorf("account rejected: %w", types.ErrForbidden)
)

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	// Login checks the credentials and account status, marks the user
	// online and returns a signed token. Bad credentials come back as
	// ErrUnauthenticated regardless of whether the account exists.
	Login(ctx context.Context, email, password string) (string, *types.User, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	// Refresh exchanges a still-valid token for a fresh one.
	Refresh(token string) (string, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepository
	tokens *TokenService
}

func NewAuthService(repo AuthRepository, tokens *TokenService, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: tokens,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, *types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))
	l.DebugContext(ctx, "Authenticating user")

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", nil, fmt.Errorf("unknown email: %w", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch user")
		return "", nil, fmt.Errorf("fetching user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("password mismatch: %w", types.ErrUnauthenticated)
	}

	switch user.Status {
	case types.UserStatusActive:
	case types.UserStatusPending:
		return "", nil, ErrAccountPending
	default:
		return "", nil, ErrAccountRejected
	}

	token, err := s.tokens.Issue(types.Principal{ID: user.ID.String(), Role: user.Role})
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to issue token")
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}

	if err := s.repo.SetOnline(ctx, user.ID, true); err != nil {
		// Login still succeeds, presence is best effort.
		l.WarnContext(ctx, "Failed to mark user online", slog.Any("error", err))
	}

	l.InfoContext(ctx, "User authenticated", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User authenticated")
	return token, user, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Logout", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if err := s.repo.SetOnline(ctx, userID, false); err != nil && !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to mark user offline")
		return fmt.Errorf("marking user offline: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetCurrentUser", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch current user")
		}
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return user, nil
}

func (s *AuthServiceImpl) Refresh(token string) (string, error) {
	return s.tokens.Refresh(token)
}
