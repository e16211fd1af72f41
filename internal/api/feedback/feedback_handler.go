package feedback

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

type FeedbackHandler struct {
	service FeedbackService
	logger  *slog.Logger
}

func NewFeedbackHandler(service FeedbackService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Feedback []types.Feedback `json:"feedback"`
	types.PageMeta
}

type respondRequest struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

func (h *FeedbackHandler) writeFeedbackError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Comentario no encontrado")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de comentario no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.CreateFeedbackParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fb, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.MsgResponse(w, r, http.StatusNotFound, "Destino del comentario no encontrado")
			return
		}
		h.writeFeedbackError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, fb)
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	items, meta, err := h.service.List(r.Context(), p, r.URL.Query())
	if err != nil {
		h.writeFeedbackError(w, r, err)
		return
	}
	if items == nil {
		items = []types.Feedback{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Feedback: items, PageMeta: meta})
}

func (h *FeedbackHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	items, meta, err := h.service.ListMine(r.Context(), p, r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if items == nil {
		items = []types.Feedback{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Feedback: items, PageMeta: meta})
}

func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	fb, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.writeFeedbackError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, fb)
}

func (h *FeedbackHandler) Respond(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req respondRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fb, err := h.service.Respond(r.Context(), p, id, req.Text, req.Status)
	if err != nil {
		h.writeFeedbackError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, fb)
}

func (h *FeedbackHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Comentario no encontrado")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
