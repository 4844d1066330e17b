package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// metadata: представление документа в MongoDB. Идентификаторы хранятся строками.
type metadata struct {
	ID          string    `bson:"_id"`
	TaskID      string    `bson:"task_id"`
	Filename    string    `bson:"filename"`
	ObjectKey   string    `bson:"object_key"`
	Bucket      string    `bson:"bucket"`
	ContentType string    `bson:"content_type"`
	Size        int64     `bson:"size"`
	Checksum    string    `bson:"checksum,omitempty"`
	UploaderID  string    `bson:"uploader_id"`
	UploadedAt  time.Time `bson:"uploaded_at"`
}

func toMetadata(doc Document) metadata {
	return metadata{
		ID:          doc.ID.String(),
		TaskID:      doc.TaskID.String(),
		Filename:    doc.Filename,
		ObjectKey:   doc.ObjectKey,
		Bucket:      doc.Bucket,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		Checksum:    doc.Checksum,
		UploaderID:  doc.UploaderID.String(),
		UploadedAt:  doc.CreatedAt,
	}
}

func (m metadata) document() (Document, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return Document{}, fmt.Errorf("document id %q: %w", m.ID, err)
	}
	taskID, err := uuid.Parse(m.TaskID)
	if err != nil {
		return Document{}, fmt.Errorf("task id %q: %w", m.TaskID, err)
	}
	uploader, err := uuid.Parse(m.UploaderID)
	if err != nil {
		return Document{}, fmt.Errorf("uploader id %q: %w", m.UploaderID, err)
	}
	return Document{
		ID:          id,
		TaskID:      taskID,
		Filename:    m.Filename,
		ObjectKey:   m.ObjectKey,
		Bucket:      m.Bucket,
		ContentType: m.ContentType,
		Size:        m.Size,
		Checksum:    m.Checksum,
		UploaderID:  uploader,
		CreatedAt:   m.UploadedAt,
	}, nil
}

type mongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository keeps document metadata in a MongoDB collection.
func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

// EnsureIndexes создаёт индексы по задаче и ключу объекта.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}}},
		{Keys: bson.D{{Key: "object_key", Value: 1}}},
	})
	return err
}

func (r *mongoRepository) Insert(ctx context.Context, doc Document) error {
	_, err := r.collection.InsertOne(ctx, toMetadata(doc))
	return err
}

func (r *mongoRepository) FindByID(ctx context.Context, id uuid.UUID) (Document, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoRepository) FindByKey(ctx context.Context, objectKey string) (Document, error) {
	return r.findOne(ctx, bson.M{"object_key": objectKey})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (Document, error) {
	var m metadata
	opts := options.FindOne().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return m.document()
}

func (r *mongoRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}})
	cur, err := r.collection.Find(ctx, bson.M{"task_id": taskID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var m metadata
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		doc, err := m.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *mongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"task_id": taskID.String()})
	return err
}

func (r *mongoRepository) CountByKey(ctx context.Context, objectKey string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"object_key": objectKey})
}
