package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aulaplan/aulaplan/internal/api"
	"github.com/aulaplan/aulaplan/internal/types"
)

type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Login handles POST /api/auth.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, "Credenciales inválidas")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		api.MsgResponse(w, r, http.StatusBadRequest, "Credenciales inválidas")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{Token: token, User: user})
	case errors.Is(err, types.ErrUnauthenticated):
		api.MsgResponse(w, r, http.StatusBadRequest, "Credenciales inválidas")
	case errors.Is(err, ErrAccountPending):
		api.MsgResponse(w, r, http.StatusForbidden, "Tu cuenta está pendiente de aprobación")
	case errors.Is(err, ErrAccountRejected):
		api.MsgResponse(w, r, http.StatusForbidden, "Tu cuenta ha sido rechazada")
	default:
		api.ServerError(w, r, err)
	}
}

// GetCurrentUser handles GET /api/auth. The token middleware already ran,
// so a missing principal is a programming error, not a client one.
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, msgNoToken)
		return
	}
	userID, err := uuid.Parse(p.ID)
	if err != nil {
		api.MsgResponse(w, r, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, user)
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Usuario no encontrado")
	default:
		api.ServerError(w, r, err)
	}
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, msgNoToken)
		return
	}
	userID, err := uuid.Parse(p.ID)
	if err != nil {
		api.MsgResponse(w, r, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		api.ServerError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Sesión cerrada correctamente")
}

// Refresh handles POST /api/auth/refresh. The token may come in the body
// or in the usual auth header; the route is public so expired sessions can
// still be renewed while the token itself is valid.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			api.MsgResponse(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		}
	}
	tokenStr := req.Token
	if tokenStr == "" {
		tokenStr = r.Header.Get(TokenHeader)
	}
	if tokenStr == "" {
		api.MsgResponse(w, r, http.StatusUnauthorized, msgNoToken)
		return
	}

	fresh, err := h.service.Refresh(tokenStr)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, RefreshResponse{Token: fresh})
	case errors.Is(err, types.ErrInvalidToken):
		api.MsgResponse(w, r, http.StatusUnauthorized, msgInvalidToken)
	default:
		api.ServerError(w, r, err)
	}
}
