package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("stored object not found")

type ObjectStorage interface {
	// Save пишет объект под ключом objectKey, перезаписывая существующий, и возвращает sha256.
	Save(ctx context.Context, objectKey, contentType string, data []byte) (checksum string, err error)
	Get(ctx context.Context, objectKey string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, objectKey string) error
	Bucket() string
}

func hashSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

type minioStorage struct {
	client     *minio.Client
	bucketName string
}

func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey string, useSSL bool, bucket string) (ObjectStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &minioStorage{client: client, bucketName: bucket}, nil
}

func (s *minioStorage) Save(ctx context.Context, objectKey, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return hashSHA256(data), nil
}

func (s *minioStorage) Get(ctx context.Context, objectKey string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, err
	}
	return obj, info.Size, nil
}

func (s *minioStorage) Delete(ctx context.Context, objectKey string) error {
	return s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{})
}

func (s *minioStorage) Bucket() string {
	return s.bucketName
}

// localStorage хранит объекты файлами в одном каталоге (UPLOAD_DIR).
type localStorage struct {
	dir string
}

func NewLocalStorage(dir string) (ObjectStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) path(objectKey string) (string, error) {
	if objectKey == "" || objectKey != filepath.Base(objectKey) {
		return "", ErrPathTraversal
	}
	return filepath.Join(s.dir, objectKey), nil
}

func (s *localStorage) Save(_ context.Context, objectKey, _ string, data []byte) (string, error) {
	dst, err := s.path(objectKey)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return hashSHA256(data), nil
}

func (s *localStorage) Get(_ context.Context, objectKey string) (io.ReadCloser, int64, error) {
	p, err := s.path(objectKey)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *localStorage) Delete(_ context.Context, objectKey string) error {
	p, err := s.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *localStorage) Bucket() string {
	return ""
}
