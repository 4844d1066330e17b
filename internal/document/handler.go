package document

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/Oniqq60/task_system_control/internal/respond"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

type Handler struct {
	service Service
	maxSize int64
	logger  *log.Logger
}

func NewHandler(service Service, maxSize int64, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, maxSize: maxSize, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("POST /tasks/{id}/documents", authn(http.HandlerFunc(h.Upload)))
	mux.Handle("GET /tasks/{id}/documents", authn(http.HandlerFunc(h.List)))
	mux.Handle("GET /documents/{id}", authn(http.HandlerFunc(h.Download)))
	mux.Handle("DELETE /documents/{id}", authn(http.HandlerFunc(h.Delete)))
	mux.Handle("GET "+StaticPrefix+"{key}", authn(http.HandlerFunc(h.Static)))
}

// Upload принимает multipart/form-data с полем file.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	taskID, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.ErrorMessage(w, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
			return
		}
		respond.ErrorMessage(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.ErrorMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		respond.ErrorMessage(w, http.StatusBadRequest, "failed to read file")
		return
	}

	filename := r.FormValue("filename")
	if filename == "" {
		filename = header.Filename
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	v, err := h.service.Upload(r.Context(), sub, UploadInput{
		TaskID:      taskID,
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			respond.ErrorMessage(w, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
			return
		}
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	taskID, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	docs, err := h.service.List(r.Context(), sub, taskID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, docs)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	doc, body, err := h.service.Open(r.Context(), sub, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.stream(w, doc, body, "attachment")
}

// Static отдаёт файл по ссылке document_path.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	if SanitizeFilename(key) != key || ValidateFilename(key) != nil {
		respond.ErrorMessage(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	doc, body, err := h.service.OpenByKey(r.Context(), sub, key)
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.stream(w, doc, body, "inline")
}

func (h *Handler) stream(w http.ResponseWriter, doc Document, body io.ReadCloser, disposition string) {
	defer body.Close()
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", disposition+`; filename="`+EscapeFilename(doc.Filename)+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Printf("stream document %s: %v", doc.ID, err)
	}
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
