package event

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

type EventHandler struct {
	service EventService
	logger  *slog.Logger
}

func NewEventHandler(service EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		logger:  logger,
		service: service,
	}
}

type listResponse struct {
	Events []types.Event `json:"events"`
	types.PageMeta
}

func (h *EventHandler) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Evento no encontrado")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de evento no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, meta, err := h.service.List(r.Context(), r.URL.Query())
	if err != nil {
		api.ServerError(w, r, err)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Events: events, PageMeta: meta})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	var params types.UpsertEventParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.Create(r.Context(), p, params)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Evento no encontrado")
		return
	}

	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, event)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var params types.UpsertEventParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.Update(r.Context(), p, id, params)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.MsgResponse(w, r, http.StatusOK, "Evento eliminado")
}

func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	event, err := h.service.Join(r.Context(), p, id)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, event)
}

// Calendar handles GET /api/calendar.
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}

	items, err := h.service.Calendar(r.Context(), p, r.URL.Query())
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, items)
}

func (h *EventHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Evento no encontrado")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
