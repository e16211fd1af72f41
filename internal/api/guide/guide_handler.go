package guide

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aulaplan/aulaplan/internal/api"
	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/types"
)

type GuideHandler struct {
	service GuideService
	logger  *slog.Logger
}

func NewGuideHandler(service GuideService, logger *slog.Logger) *GuideHandler {
	return &GuideHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Guides []types.Guide `json:"guides"`
	types.PageMeta
}

type createVersionRequest struct {
	ChangeDescription string `json:"change_description"`
}

func (h *GuideHandler) writeGuideError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Guía no encontrada")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de guía no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *GuideHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	guides, meta, err := h.service.List(r.Context(), p, r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if guides == nil {
		guides = []types.Guide{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Guides: guides, PageMeta: meta})
}

func (h *GuideHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateGuideParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	guide, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, guide)
}

func (h *GuideHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	guide, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, guide)
}

func (h *GuideHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var params types.UpdateGuideParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	guide, err := h.service.Update(r.Context(), p, id, params)
	if err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, guide)
}

func (h *GuideHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Guía eliminada")
}

func (h *GuideHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req createVersionRequest
	if r.ContentLength != 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	version, err := h.service.CreateVersion(r.Context(), p, id, req.ChangeDescription)
	if err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, version)
}

func (h *GuideHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), p, id)
	if err != nil {
		h.writeGuideError(w, r, err)
		return
	}
	if versions == nil {
		versions = []types.GuideVersion{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, versions)
}

func (h *GuideHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Versión no encontrada")
		return
	}

	version, err := h.service.GetVersion(r.Context(), p, id, versionNumber)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.MsgResponse(w, r, http.StatusNotFound, "Versión no encontrada")
			return
		}
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, version)
}

// CompareVersions handles GET /{id}/versions/compare?base=1&other=2.
func (h *GuideHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	base, errBase := strconv.Atoi(r.URL.Query().Get("base"))
	other, errOther := strconv.Atoi(r.URL.Query().Get("other"))
	if errBase != nil || errOther != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, "Se requieren los parámetros base y other")
		return
	}

	cmp, err := h.service.CompareVersions(r.Context(), p, id, base, other)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.MsgResponse(w, r, http.StatusNotFound, "Versión no encontrada")
			return
		}
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, cmp)
}

func (h *GuideHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Versión no encontrada")
		return
	}

	guide, err := h.service.RestoreVersion(r.Context(), p, id, versionNumber)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.MsgResponse(w, r, http.StatusNotFound, "Versión no encontrada")
			return
		}
		h.writeGuideError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, guide)
}

func (h *GuideHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Guía no encontrada")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
