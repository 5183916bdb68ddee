// Package scratch stages uploaded files for the duration of one request.
package scratch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var filenameSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Entry identifies one staged upload.
type Entry struct {
	Key         string
	ContentType string
}

type Store interface {
	Backend() string
	Put(ctx context.Context, key, contentType string, data []byte) (Entry, error)
	Read(ctx context.Context, entry Entry) ([]byte, error)
	Remove(ctx context.Context, entry Entry) error
}

// Use stages data under a unique key, hands the staged copy to fn and removes
// the entry on every return path, including when ctx has been cancelled.
func Use(ctx context.Context, store Store, filename, contentType string, data []byte, fn func(staged []byte) error) error {
	entry, err := store.Put(ctx, UniqueKey(filename), contentType, data)
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if rmErr := store.Remove(context.WithoutCancel(ctx), entry); rmErr != nil {
			log.Printf("scratch cleanup failed: backend=%s key=%s err=%v", store.Backend(), entry.Key, rmErr)
		}
	}()

	staged, err := store.Read(ctx, entry)
	if err != nil {
		return fmt.Errorf("read staged upload: %w", err)
	}
	return fn(staged)
}

type observedStore struct {
	Store
	onRemove func(backend string)
}

// WithRemoveHook calls onRemove after every successful removal.
func WithRemoveHook(store Store, onRemove func(backend string)) Store {
	if onRemove == nil {
		return store
	}
	return observedStore{Store: store, onRemove: onRemove}
}

func (s observedStore) Remove(ctx context.Context, entry Entry) error {
	if err := s.Store.Remove(ctx, entry); err != nil {
		return err
	}
	s.onRemove(s.Backend())
	return nil
}

// UniqueKey prefixes a sanitized filename with a random id so concurrent
// uploads of the same name never collide.
func UniqueKey(filename string) string {
	return uuid.NewString() + "-" + SanitizeFilename(filename)
}

func SanitizeFilename(raw string) string {
	base := strings.TrimSpace(filepath.Base(raw))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "file"
	}

	extension := filepath.Ext(base)
	namePart := strings.TrimSuffix(base, extension)
	namePart = filenameSanitizer.ReplaceAllString(namePart, "_")
	namePart = strings.Trim(namePart, "._")
	if namePart == "" {
		namePart = "file"
	}

	extension = strings.ToLower(extension)
	extension = filenameSanitizer.ReplaceAllString(extension, "")
	if extension == "." {
		extension = ""
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	candidate := trimToRunes(namePart+extension, 180)
	if strings.TrimSpace(candidate) == "" {
		return "file"
	}
	return candidate
}

func trimToRunes(raw string, limit int) string {
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
