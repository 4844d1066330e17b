package document

import (
	"context"
	"errors"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
)

// StaticPrefix is the URL path under which stored objects are served.
const StaticPrefix = "/static/uploads/"

// TaskAccess решает, может ли субъект выполнить действие над задачей.
type TaskAccess interface {
	Authorize(ctx context.Context, actor permission.Subject, taskID uuid.UUID, action permission.Action) error
}

type Service interface {
	Upload(ctx context.Context, actor permission.Subject, in UploadInput) (View, error)
	List(ctx context.Context, actor permission.Subject, taskID uuid.UUID) ([]View, error)
	Open(ctx context.Context, actor permission.Subject, id uuid.UUID) (Document, io.ReadCloser, error)
	OpenByKey(ctx context.Context, actor permission.Subject, objectKey string) (Document, io.ReadCloser, error)
	Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error
}

type Options struct {
	MaxFileSize int64
	BaseURL     string
}

type service struct {
	repo    Repository
	storage ObjectStorage
	tasks   TaskAccess
	opts    Options
	logger  *log.Logger
}

func NewService(repo Repository, storage ObjectStorage, tasks TaskAccess, opts Options, logger *log.Logger) Service {
	if logger == nil {
		logger = log.Default()
	}
	return &service{
		repo:    repo,
		storage: storage,
		tasks:   tasks,
		opts:    opts,
		logger:  logger,
	}
}

// ObjectKey: ключ объекта для файла задачи. Одинаковое имя перезаписывает файл.
func ObjectKey(taskID uuid.UUID, filename string) string {
	return taskID.String() + "_" + filename
}

func (s *service) Upload(ctx context.Context, actor permission.Subject, in UploadInput) (View, error) {
	if err := s.tasks.Authorize(ctx, actor, in.TaskID, permission.ActionCreate); err != nil {
		return View{}, err
	}

	filename := SanitizeFilename(in.Filename)
	if err := ValidateFilename(filename); err != nil {
		return View{}, apperr.Wrap(apperr.ErrInvalid, err.Error(), err)
	}
	if err := ValidateContentType(in.ContentType); err != nil {
		return View{}, apperr.Wrap(apperr.ErrInvalid, err.Error(), err)
	}
	if len(in.Content) == 0 {
		return View{}, apperr.Wrap(apperr.ErrInvalid, ErrEmptyContent.Error(), ErrEmptyContent)
	}
	if s.opts.MaxFileSize > 0 && int64(len(in.Content)) > s.opts.MaxFileSize {
		return View{}, apperr.Wrap(apperr.ErrInvalid, ErrFileTooLarge.Error(), ErrFileTooLarge)
	}

	key := ObjectKey(in.TaskID, filename)
	saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	checksum, err := s.storage.Save(saveCtx, key, in.ContentType, in.Content)
	if err != nil {
		return View{}, err
	}

	doc := Document{
		ID:          uuid.New(),
		TaskID:      in.TaskID,
		Filename:    filename,
		ObjectKey:   key,
		Bucket:      s.storage.Bucket(),
		ContentType: in.ContentType,
		Size:        int64(len(in.Content)),
		Checksum:    checksum,
		UploaderID:  actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		// без строки метаданных объект никому не достижим
		if n, countErr := s.repo.CountByKey(context.Background(), key); countErr == nil && n == 0 {
			if delErr := s.storage.Delete(context.Background(), key); delErr != nil {
				s.logger.Printf("remove orphan object %s: %v", key, delErr)
			}
		}
		return View{}, err
	}
	return s.view(doc), nil
}

func (s *service) List(ctx context.Context, actor permission.Subject, taskID uuid.UUID) ([]View, error) {
	if err := s.tasks.Authorize(ctx, actor, taskID, permission.ActionView); err != nil {
		return nil, err
	}
	docs, err := s.repo.FindByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(docs))
	for _, d := range docs {
		views = append(views, s.view(d))
	}
	return views, nil
}

func (s *service) Open(ctx context.Context, actor permission.Subject, id uuid.UUID) (Document, io.ReadCloser, error) {
	doc, err := mapNotFound(s.repo.FindByID(ctx, id))
	if err != nil {
		return Document{}, nil, err
	}
	return s.open(ctx, actor, doc)
}

func (s *service) OpenByKey(ctx context.Context, actor permission.Subject, objectKey string) (Document, io.ReadCloser, error) {
	doc, err := mapNotFound(s.repo.FindByKey(ctx, objectKey))
	if err != nil {
		return Document{}, nil, err
	}
	return s.open(ctx, actor, doc)
}

func (s *service) open(ctx context.Context, actor permission.Subject, doc Document) (Document, io.ReadCloser, error) {
	if err := s.tasks.Authorize(ctx, actor, doc.TaskID, permission.ActionView); err != nil {
		return Document{}, nil, err
	}
	body, size, err := s.storage.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return Document{}, nil, apperr.NotFound(err.Error())
		}
		return Document{}, nil, err
	}
	doc.Size = size
	return doc, body, nil
}

func (s *service) Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error {
	doc, err := mapNotFound(s.repo.FindByID(ctx, id))
	if err != nil {
		return err
	}
	if err := s.tasks.Authorize(ctx, actor, doc.TaskID, permission.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound(err.Error())
		}
		return err
	}
	removeObject(ctx, s.repo, s.storage, s.logger, doc.ObjectKey)
	return nil
}

func mapNotFound(doc Document, err error) (Document, error) {
	if errors.Is(err, ErrNotFound) {
		return Document{}, apperr.NotFound(err.Error())
	}
	return doc, err
}

func (s *service) view(doc Document) View {
	base := strings.TrimRight(s.opts.BaseURL, "/")
	return View{Document: doc, DocumentPath: base + StaticPrefix + url.PathEscape(doc.ObjectKey)}
}

// removeObject удаляет файл, если на него больше не ссылается ни одна строка.
func removeObject(ctx context.Context, repo Repository, storage ObjectStorage, logger *log.Logger, key string) {
	n, err := repo.CountByKey(ctx, key)
	if err != nil {
		logger.Printf("count references to %s: %v", key, err)
		return
	}
	if n > 0 {
		return
	}
	if err := storage.Delete(ctx, key); err != nil {
		logger.Printf("remove object %s: %v", key, err)
	}
}

// Cleaner removes every document of a deleted task.
type Cleaner struct {
	repo    Repository
	storage ObjectStorage
	logger  *log.Logger
}

func NewCleaner(repo Repository, storage ObjectStorage, logger *log.Logger) *Cleaner {
	if logger == nil {
		logger = log.Default()
	}
	return &Cleaner{repo: repo, storage: storage, logger: logger}
}

func (c *Cleaner) RemoveTaskDocuments(ctx context.Context, taskID uuid.UUID) error {
	docs, err := c.repo.FindByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := c.repo.DeleteByTask(ctx, taskID); err != nil {
		return err
	}
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if seen[d.ObjectKey] {
			continue
		}
		seen[d.ObjectKey] = true
		removeObject(ctx, c.repo, c.storage, c.logger, d.ObjectKey)
	}
	return nil
}
