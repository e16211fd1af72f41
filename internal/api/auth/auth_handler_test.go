package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aulaplan/aulaplan/internal/types"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *types.User, error) {
	args := m.Called(ctx, email, password)
	var user *types.User
	if args.Get(1) != nil {
		user = args.Get(1).(*types.User)
	}
	return args.String(0), user, args.Error(2)
}

func (m *MockAuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	var user *types.User
	if args.Get(0) != nil {
		user = args.Get(0).(*types.User)
	}
	return user, args.Error(1)
}

func (m *MockAuthService) Refresh(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

func setupAuthHandlerTest(t *testing.T) (*MockAuthService, *AuthHandler) {
	t.Helper()
	svc := new(MockAuthService)
	handler := NewAuthHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, handler
}

func TestAuthHandlerLogin(t *testing.T) {
	userID := uuid.New()

	t.Run("success returns token and user", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		user := &types.User{ID: userID, Email: "ana@example.com", Role: types.RoleInstructor}
		svc.On("Login", mock.Anything, "ana@example.com", "secret123").Return("tok", user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth",
			strings.NewReader(`{"email":"ana@example.com","password":"secret123"}`))
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, "ana@example.com", resp.User.Email)
		svc.AssertExpectations(t)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Login", mock.Anything, "ana@example.com", "wrong").
			Return("", nil, types.ErrUnauthenticated)

		req := httptest.NewRequest(http.MethodPost, "/api/auth",
			strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`))
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Credenciales inválidas", decodeMsg(t, rr))
	})

	t.Run("pending account", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Login", mock.Anything, "ana@example.com", "secret123").
			Return("", nil, ErrAccountPending)

		req := httptest.NewRequest(http.MethodPost, "/api/auth",
			strings.NewReader(`{"email":"ana@example.com","password":"secret123"}`))
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Tu cuenta está pendiente de aprobación", decodeMsg(t, rr))
	})

	t.Run("empty body rejected without calling service", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Login")
	})
}

func TestAuthHandlerRefresh(t *testing.T) {
	t.Run("token from body", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Refresh", "old-token").Return("new-token", nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
			strings.NewReader(`{"token":"old-token"}`))
		rr := httptest.NewRecorder()
		handler.Refresh(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp RefreshResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "new-token", resp.Token)
	})

	t.Run("token from header when body empty", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Refresh", "header-token").Return("new-token", nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.Header.Set(TokenHeader, "header-token")
		rr := httptest.NewRecorder()
		handler.Refresh(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("no token anywhere", func(t *testing.T) {
		_, handler := setupAuthHandlerTest(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		rr := httptest.NewRecorder()
		handler.Refresh(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "No hay token, autorización denegada", decodeMsg(t, rr))
	})

	t.Run("invalid token", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Refresh", "stale").Return("", types.ErrInvalidToken)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
			strings.NewReader(`{"token":"stale"}`))
		rr := httptest.NewRecorder()
		handler.Refresh(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Token no válido", decodeMsg(t, rr))
	})

	t.Run("unexpected error returns plain 500", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("Refresh", "t").Return("", assert.AnError)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
			strings.NewReader(`{"token":"t"}`))
		rr := httptest.NewRecorder()
		handler.Refresh(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Error del servidor", rr.Body.String())
	})
}

func TestAuthHandlerGetCurrentUser(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the principal's account", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		user := &types.User{ID: userID, Name: "Ana", Role: types.RoleAdmin, CreatedAt: time.Now()}
		svc.On("GetCurrentUser", mock.Anything, userID).Return(user, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(),
			types.Principal{ID: userID.String(), Role: types.RoleAdmin}))
		rr := httptest.NewRecorder()
		handler.GetCurrentUser(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var got types.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "Ana", got.Name)
	})

	t.Run("account deleted since token issued", func(t *testing.T) {
		svc, handler := setupAuthHandlerTest(t)
		svc.On("GetCurrentUser", mock.Anything, userID).Return(nil, types.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(),
			types.Principal{ID: userID.String(), Role: types.RoleAdmin}))
		rr := httptest.NewRecorder()
		handler.GetCurrentUser(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Usuario no encontrado", decodeMsg(t, rr))
	})
}
