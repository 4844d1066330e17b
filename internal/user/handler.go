package user

import (
	"net/http"

	"github.com/Oniqq60/task_system_control/internal/respond"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type roleRequest struct {
	Role string `json:"role"`
}

// RegisterHandlers вешает маршруты пользователей; authn оборачивает каждый из них.
func (h *Handler) RegisterHandlers(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("GET /users", authn(http.HandlerFunc(h.List)))
	mux.Handle("POST /users", authn(http.HandlerFunc(h.Create)))
	mux.Handle("GET /users/{id}", authn(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /users/{id}", authn(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /users/{id}", authn(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /roles", authn(http.HandlerFunc(h.Roles)))
	mux.Handle("PUT /roles/{id}", authn(http.HandlerFunc(h.UpdateRole)))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	users, err := h.service.List(r.Context(), sub)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	respond.JSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), sub, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	var req CreateInput
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	u, err := h.service.Create(r.Context(), sub, req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateInput
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	u, err := h.service.Update(r.Context(), sub, id, req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), sub, id); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Roles(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	roles, err := h.service.Roles(r.Context(), sub)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, roles)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req roleRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	u, err := h.service.UpdateRole(r.Context(), sub, id, req.Role)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}
