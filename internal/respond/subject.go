package respond

import (
	"net/http"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
)

// Subject достаёт аутентифицированного пользователя или отвечает 401.
func Subject(w http.ResponseWriter, r *http.Request) (permission.Subject, bool) {
	sub, ok := permission.SubjectFrom(r.Context())
	if !ok || sub.UserID == uuid.Nil {
		ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return permission.Subject{}, false
	}
	return sub, true
}

// PathID parses a uuid path value or answers 400.
func PathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
