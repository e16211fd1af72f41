package user

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

type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		logger:  logger,
		service: service,
	}
}

type registerResponse struct {
	Msg   string      `json:"msg"`
	Token string      `json:"token,omitempty"`
	User  *types.User `json:"user"`
}

type listResponse struct {
	Users []types.User `json:"users"`
	types.PageMeta
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *UserHandler) writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.MsgResponse(w, r, http.StatusNotFound, "Usuario no encontrado")
	case errors.Is(err, types.ErrConflict):
		api.MsgResponse(w, r, http.StatusConflict, "El usuario ya existe")
	case errors.Is(err, types.ErrForbidden):
		api.MsgResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrValidation):
		api.MsgResponse(w, r, http.StatusBadRequest, "Datos de usuario no válidos")
	default:
		api.ServerError(w, r, err)
	}
}

// Register is the only public user endpoint.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params types.RegisterUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, token, err := h.service.Register(r.Context(), params)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}

	msg := "Cuenta creada, pendiente de aprobación"
	if u.Status == types.UserStatusActive {
		msg = "Cuenta creada correctamente"
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, registerResponse{Msg: msg, Token: token, User: u})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}
	users, meta, err := h.service.List(r.Context(), p, r.URL.Query())
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	h.writeUserList(w, r, users, meta)
}

func (h *UserHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}
	users, meta, err := h.service.ListPending(r.Context(), p, r.URL.Query())
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	h.writeUserList(w, r, users, meta)
}

func (h *UserHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return
	}
	users, meta, err := h.service.ListAdmins(r.Context(), p, r.URL.Query())
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	h.writeUserList(w, r, users, meta)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.MsgResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.service.UpdateStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

func (h *UserHandler) writeUserList(w http.ResponseWriter, r *http.Request, users []types.User, meta types.PageMeta) {
	if users == nil {
		users = []types.User{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, listResponse{Users: users, PageMeta: meta})
}

func (h *UserHandler) principalAndID(w http.ResponseWriter, r *http.Request) (types.Principal, uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.MsgResponse(w, r, http.StatusUnauthorized, "No hay token, autorización denegada")
		return types.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.MsgResponse(w, r, http.StatusNotFound, "Usuario no encontrado")
		return types.Principal{}, uuid.Nil, false
	}
	return p, id, true
}
