package document

import (
	"time"

	"github.com/google/uuid"
)

// Document: метаданные файла, прикреплённого к задаче. Сам файл лежит в ObjectStorage.
type Document struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID      uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	Filename    string    `json:"filename" gorm:"not null"`
	ObjectKey   string    `json:"-" gorm:"not null;index"`
	Bucket      string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum,omitempty"`
	UploaderID  uuid.UUID `json:"uploader_id" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Document) TableName() string {
	return "task_documents"
}

// View is what clients see: the metadata plus a URL for the stored file.
type View struct {
	Document
	DocumentPath string `json:"document_path"`
}

type UploadInput struct {
	TaskID      uuid.UUID
	Filename    string
	ContentType string
	Content     []byte
}
