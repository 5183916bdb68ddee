package scratch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps entries as files in one directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(trimmed, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: trimmed}, nil
}

func (s *LocalStore) Backend() string {
	return "local"
}

func (s *LocalStore) Put(_ context.Context, key, contentType string, data []byte) (Entry, error) {
	path, err := s.path(key)
	if err != nil {
		return Entry{}, err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return Entry{}, fmt.Errorf("create upload dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Entry{}, fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return Entry{}, fmt.Errorf("write scratch file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return Entry{}, fmt.Errorf("close scratch file: %w", err)
	}
	return Entry{Key: key, ContentType: contentType}, nil
}

func (s *LocalStore) Read(_ context.Context, entry Entry) ([]byte, error) {
	path, err := s.path(entry.Key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *LocalStore) Remove(_ context.Context, entry Entry) error {
	path, err := s.path(entry.Key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid scratch key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
