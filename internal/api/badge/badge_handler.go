package badge

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aulaplan/aulaplan/internal/api"
	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/types"
)

type BadgeHandler struct {
	service BadgeService
	logger  *slog.Logger
}

func NewBadgeHandler(service BadgeService, logger *slog.Logger) *BadgeHandler {
	return &BadgeHandler{
		logger:  logger,
		service: service,
	}
}

type assignRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	BadgeID uuid.UUID `json:"badge_id"`
}

type progressRequest struct {
	Progress int `json:"progress"`
}

func (h *BadgeHandler) writeBadgeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Insignia no encontrada")
	case errors.Is(err, types.ErrConflict):
		api.MsgResponse(w, r, http.StatusConflict, "La insignia ya existe o ya fue asignada")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de insignia no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

// Catalog handles GET /api/badges.
func (h *BadgeHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	badges, err := h.service.Catalog(r.Context())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if badges == nil {
		badges = []types.Badge{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, badges)
}

func (h *BadgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Insignia no encontrada")
		return
	}
	badge, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, badge)
}

func (h *BadgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateBadgeParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	badge, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, badge)
}

func (h *BadgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var params types.UpdateBadgeParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	badge, err := h.service.Update(r.Context(), p, id, params)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, badge)
}

func (h *BadgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Insignia eliminada")
}

// Assign handles POST /api/badges/assign.
func (h *BadgeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var req assignRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == uuid.Nil || req.BadgeID == uuid.Nil {
		api.MsgResponse(w, r, http.StatusBadRequest, "Se requieren user_id y badge_id")
		return
	}

	ub, err := h.service.Assign(r.Context(), p, req.UserID, req.BadgeID)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, ub)
}

// ListUserBadges handles GET /api/badges/user/{userId}.
func (h *BadgeHandler) ListUserBadges(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Usuario no encontrado")
		return
	}

	badges, err := h.service.ListUserBadges(r.Context(), userID)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	if badges == nil {
		badges = []types.UserBadge{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, badges)
}

// UpdateProgress handles PUT /api/badges/user/{userId}/{id}/progress.
func (h *BadgeHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Usuario no encontrado")
		return
	}

	var req progressRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ub, err := h.service.UpdateProgress(r.Context(), p, userID, id, req.Progress)
	if err != nil {
		h.writeBadgeError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ub)
}

func (h *BadgeHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Insignia no encontrada")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
