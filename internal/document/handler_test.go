package document

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/Oniqq60/task_system_control/internal/permission"
)

func (f *fixture) mux() *http.ServeMux {
	mux := http.NewServeMux()
	authn := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(permission.WithSubject(r.Context(), f.actor)))
		})
	}
	NewHandler(f.svc, 64, log.New(io.Discard, "", 0)).RegisterHandlers(mux, authn)
	return mux
}

func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandlerUploadListDownload(t *testing.T) {
	f := newFixture(t)
	mux := f.mux()
	taskPath := "/tasks/" + f.tasks.taskID.String() + "/documents"

	body, ct := multipartBody(t, "plan.txt", "text/plain", []byte("do it"))
	req := httptest.NewRequest(http.MethodPost, taskPath, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var created View
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, taskPath, nil))
	var listed []View
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil || len(listed) != 1 {
		t.Fatalf("list = %+v, %v", listed, err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+created.ID.String(), nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "do it" {
		t.Fatalf("download = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="plan.txt"` {
		t.Fatalf("content disposition = %q", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, StaticPrefix+f.tasks.taskID.String()+"_plan.txt", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "do it" {
		t.Fatalf("static = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/"+created.ID.String(), nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestHandlerUploadTooLarge(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "big.txt", "text/plain", bytes.Repeat([]byte("x"), 100))
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+f.tasks.taskID.String()+"/documents", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestHandlerUploadRequiresMultipart(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+f.tasks.taskID.String()+"/documents", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
