package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("document not found")

type Repository interface {
	Insert(ctx context.Context, doc Document) error
	FindByID(ctx context.Context, id uuid.UUID) (Document, error)
	FindByKey(ctx context.Context, objectKey string) (Document, error)
	FindByTask(ctx context.Context, taskID uuid.UUID) ([]Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByTask(ctx context.Context, taskID uuid.UUID) error
	// CountByKey сообщает, сколько строк ссылается на объект: файл удаляется только с последней.
	CountByKey(ctx context.Context, objectKey string) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Insert(ctx context.Context, doc Document) error {
	return r.db.WithContext(ctx).Create(&doc).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (Document, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByKey returns the latest row pointing at objectKey.
func (r *gormRepository) FindByKey(ctx context.Context, objectKey string) (Document, error) {
	return r.first(ctx, "object_key = ?", objectKey)
}

func (r *gormRepository) first(ctx context.Context, query string, arg interface{}) (Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).Where(query, arg).Order("created_at DESC").First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (r *gormRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]Document, error) {
	var docs []Document
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Document{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&Document{}, "task_id = ?", taskID).Error
}

func (r *gormRepository) CountByKey(ctx context.Context, objectKey string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Document{}).Where("object_key = ?", objectKey).Count(&n).Error
	return n, err
}
