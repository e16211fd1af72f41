package report

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

type ReportHandler struct {
	service ReportService
	logger  *slog.Logger
}

func NewReportHandler(service ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Reports []types.Report `json:"reports"`
	types.PageMeta
}

func (h *ReportHandler) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Informe no encontrado")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de informe no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateReportParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, report)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	reports, meta, err := h.service.List(r.Context(), p, r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if reports == nil {
		reports = []types.Report{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Reports: reports, PageMeta: meta})
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, report)
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.writeReportError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Informe eliminado")
}

func (h *ReportHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Informe no encontrado")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
