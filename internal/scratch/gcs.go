package scratch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcsapi "google.golang.org/api/storage/v1"
)

// GCSStore keeps entries as objects under a prefix of one bucket.
type GCSStore struct {
	bucketName string
	prefix     string
	service    *gcsapi.Service
}

func NewGCSStore(ctx context.Context, bucketName, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	trimmedBucket := strings.TrimSpace(bucketName)
	if trimmedBucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	service, err := gcsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs service: %w", err)
	}

	if _, err := service.Buckets.Get(trimmedBucket).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("read gcs bucket attrs: %w", err)
	}

	return &GCSStore{
		bucketName: trimmedBucket,
		prefix:     strings.Trim(strings.TrimSpace(prefix), "/"),
		service:    service,
	}, nil
}

func (s *GCSStore) Backend() string {
	return "gcs"
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (Entry, error) {
	objectPath := s.objectPath(key)
	if objectPath == "" {
		return Entry{}, errors.New("object path is required")
	}

	trimmedType := strings.TrimSpace(contentType)
	if trimmedType == "" {
		trimmedType = "application/octet-stream"
	}

	object := &gcsapi.Object{
		Name:        objectPath,
		ContentType: trimmedType,
	}

	if _, err := s.service.Objects.Insert(s.bucketName, object).Media(bytes.NewReader(data)).Context(ctx).Do(); err != nil {
		return Entry{}, fmt.Errorf("write gcs object %q: %w", objectPath, err)
	}
	return Entry{Key: key, ContentType: trimmedType}, nil
}

func (s *GCSStore) Read(ctx context.Context, entry Entry) ([]byte, error) {
	objectPath := s.objectPath(entry.Key)
	resp, err := s.service.Objects.Get(s.bucketName, objectPath).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("read gcs object %q: %w", objectPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %q body: %w", objectPath, err)
	}
	return data, nil
}

func (s *GCSStore) Remove(ctx context.Context, entry Entry) error {
	objectPath := s.objectPath(entry.Key)
	if objectPath == "" {
		return nil
	}

	err := s.service.Objects.Delete(s.bucketName, objectPath).Context(ctx).Do()
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}

	return fmt.Errorf("delete gcs object %q: %w", objectPath, err)
}

func (s *GCSStore) objectPath(key string) string {
	cleanKey := strings.Trim(strings.TrimSpace(key), "/")
	if cleanKey == "" {
		return ""
	}
	if s.prefix == "" {
		return cleanKey
	}
	return path.Join(s.prefix, cleanKey)
}
