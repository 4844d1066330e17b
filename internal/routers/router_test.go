package routers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/document"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/middleware"
	"github.com/Oniqq60/task_system_control/internal/task"
	"github.com/Oniqq60/task_system_control/internal/testutil"
	"github.com/Oniqq60/task_system_control/internal/user"
)

const secret = "0123456789abcdef0123456789abcdef"

type nopSender struct{}

func (nopSender) Send(context.Context, mailer.Message) error { return nil }

func newServer(t *testing.T, health map[string]HealthCheck) (http.Handler, user.Service) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	db := testutil.NewDB(t, &user.User{}, &task.Task{}, &task.History{}, &document.Document{}, &auth.ResetToken{})

	users := user.NewRepository(db)
	userSvc := user.NewService(users, nopSender{}, "http://localhost/login", quiet)
	authSvc := auth.NewService(users, auth.NewTokenRepository(db), nopSender{}, auth.Options{
		JWTSecret:     []byte(secret),
		JWTTTL:        time.Hour,
		ResetTokenTTL: 10 * time.Minute,
		BaseURL:       "http://localhost",
	}, quiet)
	authn := auth.NewAuthenticator([]byte(secret), nil, users)

	storage, err := document.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	docRepo := document.NewRepository(db)
	taskSvc := task.NewService(task.NewRepository(db), users, nil, document.NewCleaner(docRepo, storage, quiet), quiet)
	docSvc := document.NewService(docRepo, storage, taskSvc, document.Options{MaxFileSize: 1 << 20, BaseURL: "http://localhost"}, quiet)

	router, err := New(Dependencies{
		Auth:       auth.NewHandler(authSvc, authn, nil, nil, false, quiet),
		Users:      user.NewHandler(userSvc),
		Tasks:      task.NewHandler(taskSvc),
		Documents:  document.NewHandler(docSvc, 1<<20, quiet),
		Authn:      authn.Middleware,
		Health:     health,
		Middleware: []func(http.Handler) http.Handler{middleware.Recover(quiet), middleware.SecurityHeaders},
	})
	if err != nil {
		t.Fatal(err)
	}
	return router.Handler(), userSvc
}

func call(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.AccessToken
}

func decodeID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	id, _ := body["id"].(string)
	return id
}

func TestEndToEndRoleFlow(t *testing.T) {
	h, userSvc := newServer(t, nil)
	if _, err := userSvc.CreateSuperAdmin(context.Background(), user.CreateInput{
		Name: "Root", Email: "root@example.com", Password: "rootpass1",
	}); err != nil {
		t.Fatal(err)
	}
	rootToken := login(t, h, "root@example.com", "rootpass1")

	rec := call(t, h, http.MethodPost, "/users", rootToken, `{"name":"Mia","email":"mia@example.com","password":"manager1","role":"MANAGER"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create manager: %d %s", rec.Code, rec.Body)
	}
	managerToken := login(t, h, "mia@example.com", "manager1")

	rec = call(t, h, http.MethodPost, "/users", managerToken, `{"name":"Ari","email":"ari@example.com","password":"agentpw1","role":"AGENT"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create agent: %d %s", rec.Code, rec.Body)
	}
	agentID := decodeID(t, rec)
	agentToken := login(t, h, "ari@example.com", "agentpw1")

	if rec := call(t, h, http.MethodPost, "/users", managerToken, `{"name":"Max","email":"max@example.com","password":"manager2","role":"MANAGER"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("manager creating manager: %d", rec.Code)
	}

	rec = call(t, h, http.MethodPost, "/tasks", managerToken, `{"title":"Ship it","assignee_id":"`+agentID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rec.Code, rec.Body)
	}
	taskID := decodeID(t, rec)

	if rec := call(t, h, http.MethodPut, "/tasks/"+taskID, agentToken, `{"status":"COMPLETED","comment":"done"}`); rec.Code != http.StatusOK {
		t.Fatalf("agent status update: %d %s", rec.Code, rec.Body)
	}

	rec = call(t, h, http.MethodGet, "/tasks", agentToken, "")
	var tasks []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil || len(tasks) != 1 || tasks[0]["status"] != "COMPLETED" {
		t.Fatalf("agent list: %v %v", tasks, err)
	}

	if rec := call(t, h, http.MethodGet, "/roles", managerToken, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("manager listing roles: %d", rec.Code)
	}
	if rec := call(t, h, http.MethodGet, "/roles", rootToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("root listing roles: %d", rec.Code)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	h, _ := newServer(t, nil)
	for _, path := range []string{"/tasks", "/users", "/auth/me", "/tasks/history"} {
		if rec := call(t, h, http.MethodGet, path, "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: %d", path, rec.Code)
		}
	}
	if rec := call(t, h, http.MethodGet, "/tasks", "not-a-jwt", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	rec := call(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("healthz: %d %v", rec.Code, rec.Header())
	}

	h, _ = newServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = call(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded healthz: %d", rec.Code)
	}
}

func TestNewRequiresHandlers(t *testing.T) {
	if _, err := New(Dependencies{}); err == nil {
		t.Fatal("expected error for missing handlers")
	}
}
