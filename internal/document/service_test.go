package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/testutil"
	"github.com/google/uuid"
)

// fakeTasks разрешает действия над одной задачей по таблице.
type fakeTasks struct {
	taskID  uuid.UUID
	allowed map[permission.Action]bool
}

func (f *fakeTasks) Authorize(_ context.Context, _ permission.Subject, taskID uuid.UUID, action permission.Action) error {
	if taskID != f.taskID {
		return apperr.NotFound("task not found")
	}
	if !f.allowed[action] {
		return apperr.Forbidden()
	}
	return nil
}

type failingRepo struct {
	Repository
}

func (failingRepo) Insert(context.Context, Document) error {
	return errors.New("insert failed")
}

type fixture struct {
	dir     string
	repo    Repository
	storage ObjectStorage
	tasks   *fakeTasks
	svc     Service
	actor   permission.Subject
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		dir:     dir,
		repo:    NewRepository(testutil.NewDB(t, &Document{})),
		storage: storage,
		tasks: &fakeTasks{taskID: uuid.New(), allowed: map[permission.Action]bool{
			permission.ActionCreate: true,
			permission.ActionView:   true,
			permission.ActionDelete: true,
		}},
		actor: permission.Subject{UserID: uuid.New(), Role: permission.RoleManager},
	}
	f.svc = NewService(f.repo, f.storage, f.tasks, Options{MaxFileSize: 64, BaseURL: "http://files.local/"}, log.New(io.Discard, "", 0))
	return f
}

func (f *fixture) upload(t *testing.T, name, body string) View {
	t.Helper()
	v, err := f.svc.Upload(context.Background(), f.actor, UploadInput{
		TaskID:      f.tasks.taskID,
		Filename:    name,
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte(body),
	})
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return v
}

func TestUploadStoresFileAndMetadata(t *testing.T) {
	f := newFixture(t)
	v := f.upload(t, "notes.txt", "hello")

	key := f.tasks.taskID.String() + "_notes.txt"
	if v.ObjectKey != key {
		t.Fatalf("object key = %s", v.ObjectKey)
	}
	if v.DocumentPath != "http://files.local/static/uploads/"+key {
		t.Fatalf("document path = %s", v.DocumentPath)
	}
	if v.Checksum != hashSHA256([]byte("hello")) || v.Size != 5 {
		t.Fatalf("unexpected metadata %+v", v.Document)
	}
	data, err := os.ReadFile(filepath.Join(f.dir, key))
	if err != nil || string(data) != "hello" {
		t.Fatalf("stored file = %q, %v", data, err)
	}
}

func TestUploadSameNameOverwritesAndKeepsRows(t *testing.T) {
	f := newFixture(t)
	first := f.upload(t, "a.txt", "one")
	second := f.upload(t, "a.txt", "two")
	if first.ID == second.ID || first.ObjectKey != second.ObjectKey {
		t.Fatalf("rows: %+v %+v", first.Document, second.Document)
	}

	docs, err := f.svc.List(context.Background(), f.actor, f.tasks.taskID)
	if err != nil || len(docs) != 2 {
		t.Fatalf("list = %d, %v", len(docs), err)
	}

	_, body, err := f.svc.Open(context.Background(), f.actor, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "two" {
		t.Fatalf("content = %q", data)
	}

	// файл остаётся, пока на него ссылается вторая строка
	if err := f.svc.Delete(context.Background(), f.actor, first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, first.ObjectKey)); err != nil {
		t.Fatalf("shared object removed early: %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.actor, second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, first.ObjectKey)); !os.IsNotExist(err) {
		t.Fatalf("object still present: %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"bad extension", UploadInput{Filename: "run.exe", ContentType: "text/plain", Content: []byte("x")}, ErrInvalidFileType},
		{"bad content type", UploadInput{Filename: "a.txt", ContentType: "text/html", Content: []byte("x")}, ErrInvalidContentType},
		{"empty", UploadInput{Filename: "a.txt", ContentType: "text/plain"}, ErrEmptyContent},
		{"too large", UploadInput{Filename: "a.txt", ContentType: "text/plain", Content: bytes.Repeat([]byte("x"), 65)}, ErrFileTooLarge},
		{"no name", UploadInput{Filename: "", ContentType: "text/plain", Content: []byte("x")}, ErrInvalidFilename},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.TaskID = f.tasks.taskID
			_, err := f.svc.Upload(ctx, f.actor, tc.in)
			if !errors.Is(err, tc.want) || !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	v := f.upload(t, "../../etc/passwd.txt", "x")
	if v.Filename != "passwd.txt" {
		t.Fatalf("sanitized filename = %q", v.Filename)
	}
}

func TestUploadRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.allowed[permission.ActionCreate] = false

	_, err := f.svc.Upload(ctx, f.actor, UploadInput{TaskID: f.tasks.taskID, Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = f.svc.Upload(ctx, f.actor, UploadInput{TaskID: uuid.New(), Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	entries, _ := os.ReadDir(f.dir)
	if len(entries) != 0 {
		t.Fatalf("denied upload stored %d files", len(entries))
	}
}

func TestFailedInsertRemovesObject(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingRepo{f.repo}, f.storage, f.tasks, Options{MaxFileSize: 64}, log.New(io.Discard, "", 0))

	_, err := svc.Upload(context.Background(), f.actor, UploadInput{TaskID: f.tasks.taskID, Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")})
	if err == nil {
		t.Fatal("expected insert error")
	}
	entries, _ := os.ReadDir(f.dir)
	if len(entries) != 0 {
		t.Fatalf("orphan object left: %v", entries)
	}
}

func TestViewAndDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.upload(t, "a.txt", "x")

	f.tasks.allowed[permission.ActionView] = false
	if _, err := f.svc.List(ctx, f.actor, f.tasks.taskID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("list: %v", err)
	}
	if _, _, err := f.svc.Open(ctx, f.actor, v.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("open: %v", err)
	}

	f.tasks.allowed[permission.ActionDelete] = false
	if err := f.svc.Delete(ctx, f.actor, v.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, f.actor, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestCleanerRemovesTaskDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "a.txt", "1")
	f.upload(t, "a.txt", "2")
	f.upload(t, "b.txt", "3")

	if err := NewCleaner(f.repo, f.storage, log.New(io.Discard, "", 0)).RemoveTaskDocuments(ctx, f.tasks.taskID); err != nil {
		t.Fatal(err)
	}
	docs, err := f.repo.FindByTask(ctx, f.tasks.taskID)
	if err != nil || len(docs) != 0 {
		t.Fatalf("rows left: %d, %v", len(docs), err)
	}
	entries, _ := os.ReadDir(f.dir)
	if len(entries) != 0 {
		t.Fatalf("files left: %v", entries)
	}
}

func TestFilenameHelpers(t *testing.T) {
	cases := map[string]error{
		"report.pdf":   nil,
		"photo.JPEG":   nil,
		".txt":         ErrInvalidFilename,
		"noext":        ErrInvalidFilename,
		"a..b.txt":     ErrPathTraversal,
		"dir/file.txt": ErrPathTraversal,
		"virus.exe":    ErrInvalidFileType,
	}
	for name, want := range cases {
		if err := ValidateFilename(name); !errors.Is(err, want) {
			t.Errorf("ValidateFilename(%q) = %v, want %v", name, err, want)
		}
	}

	if got := SanitizeFilename("C:\\docs\\plan\x00.txt"); got != "plan.txt" {
		t.Errorf("SanitizeFilename = %q", got)
	}
	if got := EscapeFilename(`a"b\c.txt`); got != `a\"b\\c.txt` {
		t.Errorf("EscapeFilename = %q", got)
	}
	if err := ValidateContentType("application/pdf"); err != nil {
		t.Errorf("pdf rejected: %v", err)
	}
	if err := ValidateContentType(""); !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("empty content type accepted")
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Save(context.Background(), "../escape.txt", "text/plain", []byte("x")); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("expected traversal error, got %v", err)
	}
	if _, _, err := storage.Get(context.Background(), "missing.txt"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.HasPrefix(hashSHA256(nil), "e3b0c442") {
		t.Fatal("unexpected sha256 of empty input")
	}
}
