package task

import (
	"net/http"
	"strings"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/respond"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterHandlers(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("POST /tasks", authn(http.HandlerFunc(h.Create)))
	mux.Handle("GET /tasks", authn(http.HandlerFunc(h.List)))
	mux.Handle("GET /tasks/history", authn(http.HandlerFunc(h.History)))
	mux.Handle("GET /tasks/{id}", authn(http.HandlerFunc(h.Get)))
	mux.Handle("GET /tasks/{id}/history", authn(http.HandlerFunc(h.TaskHistory)))
	mux.Handle("PUT /tasks/{id}", authn(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /tasks/{id}", authn(http.HandlerFunc(h.Delete)))
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
	v, err := h.service.Create(r.Context(), sub, req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, v)
}

// List принимает фильтры ?status=&due_date=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	var filter ListFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		status := Status(strings.ToUpper(s))
		filter.Status = &status
	}
	filter.DueDate = strings.TrimSpace(r.URL.Query().Get("due_date"))

	tasks, err := h.service.List(r.Context(), sub, filter)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, tasks)
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
	v, err := h.service.Get(r.Context(), sub, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
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
	v, err := h.service.Update(r.Context(), sub, id, req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
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

// History: ?task_id=<uuid> повторяется или через запятую.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	var ids []uuid.UUID
	for _, raw := range r.URL.Query()["task_id"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				respond.ErrorMessage(w, http.StatusBadRequest, "invalid task_id")
				return
			}
			ids = append(ids, id)
		}
	}
	h.writeHistory(w, r, sub, ids)
}

func (h *Handler) TaskHistory(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), sub, id); err != nil {
		respond.Error(w, err)
		return
	}
	h.writeHistory(w, r, sub, []uuid.UUID{id})
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, sub permission.Subject, ids []uuid.UUID) {
	rows, err := h.service.History(r.Context(), sub, ids)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if rows == nil {
		rows = []History{}
	}
	respond.JSON(w, http.StatusOK, rows)
}
