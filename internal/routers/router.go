package routers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/document"
	"github.com/Oniqq60/task_system_control/internal/middleware"
	"github.com/Oniqq60/task_system_control/internal/respond"
	"github.com/Oniqq60/task_system_control/internal/task"
	"github.com/Oniqq60/task_system_control/internal/user"
)

// HealthCheck проверяет зависимость; nil означает, что она доступна.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Auth       *auth.Handler
	Users      *user.Handler
	Tasks      *task.Handler
	Documents  *document.Handler
	Authn      func(http.Handler) http.Handler
	Health     map[string]HealthCheck
	Middleware []func(http.Handler) http.Handler
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
}

func New(deps Dependencies) (*Router, error) {
	if deps.Auth == nil || deps.Users == nil || deps.Tasks == nil || deps.Documents == nil {
		return nil, errors.New("all handlers must be provided")
	}
	if deps.Authn == nil {
		return nil, errors.New("authentication middleware is required")
	}

	mux := http.NewServeMux()
	deps.Auth.RegisterHandlers(mux)
	deps.Users.RegisterHandlers(mux, deps.Authn)
	deps.Tasks.RegisterHandlers(mux, deps.Authn)
	deps.Documents.RegisterHandlers(mux, deps.Authn)
	mux.HandleFunc("GET /healthz", healthz(deps.Health))

	return &Router{
		mux:     mux,
		handler: middleware.Chain(mux, deps.Middleware...),
	}, nil
}

func (r *Router) Handler() http.Handler {
	if r == nil {
		return nil
	}
	return r.handler
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		respond.JSON(w, status, report)
	}
}
