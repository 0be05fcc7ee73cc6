// Package storage archives raw Fitbit payloads in Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// ErrObjectNotFound is returned by Read for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// StorageAdapter implements shared.BlobStore on a GCS client.
type StorageAdapter struct {
	Client *storage.Client
}

func NewStorageAdapter(client *storage.Client) *StorageAdapter {
	return &StorageAdapter{Client: client}
}

// Write stores data as one object, replacing any previous version.
func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(objectName)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucketName, objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

func (a *StorageAdapter) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	rc, err := a.Client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucketName, objectName, ErrObjectNotFound)
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func contentType(objectName string) string {
	switch path.Ext(objectName) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
