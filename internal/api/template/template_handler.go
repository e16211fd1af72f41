package template

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

type TemplateHandler struct {
	service TemplateService
	logger  *slog.Logger
}

func NewTemplateHandler(service TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Templates []types.Template `json:"templates"`
	types.PageMeta
}

func (h *TemplateHandler) writeTemplateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Plantilla no encontrada")
	case errors.Is(err, types.ErrConflict):
		api.MsgResponse(w, r, http.StatusConflict, "Ya existe una plantilla con ese nombre")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de plantilla no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateTemplateParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, tpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, meta, err := h.service.List(r.Context(), r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if templates == nil {
		templates = []types.Template{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Templates: templates, PageMeta: meta})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Plantilla no encontrada")
		return
	}
	tpl, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, tpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var params types.UpdateTemplateParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.service.Update(r.Context(), p, id, params)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, tpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Plantilla eliminada")
}

func (h *TemplateHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Plantilla no encontrada")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
