package activity

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

type ActivityHandler struct {
	service ActivityService
	logger  *slog.Logger
}

func NewActivityHandler(service ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Activities []types.Activity `json:"activities"`
	types.PageMeta
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	activities, meta, err := h.service.List(r.Context(), p, r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if activities == nil {
		activities = []types.Activity{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Activities: activities, PageMeta: meta})
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateActivityParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	activity, err := h.service.Create(r.Context(), p, params)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusCreated, activity)
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "El título es obligatorio")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	activity, err := h.service.Get(r.Context(), p, id)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, activity)
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Actividad no encontrada")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var params types.UpdateActivityParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	activity, err := h.service.Update(r.Context(), p, id, params)
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, activity)
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Actividad no encontrada")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	err := h.service.Delete(r.Context(), p, id)
	switch {
	case err == nil:
		api.MsgResponse(w, r, http.StatusOK, "Actividad eliminada")
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Actividad no encontrada")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *ActivityHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Actividad no encontrada")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
