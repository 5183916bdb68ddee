package scratch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
)

func TestUseRemovesEntryAfterSuccess(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	var seen []byte
	err = Use(context.Background(), store, "photo.png", "image/png", []byte("pixels"), func(staged []byte) error {
		seen = staged
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Fatalf("expected one staged entry while in use, got %d", len(entries))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if string(seen) != "pixels" {
		t.Fatalf("unexpected staged data: %q", seen)
	}
	assertEmptyDir(t, dir)
}

func TestUseRemovesEntryAfterFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	boom := errors.New("upstream exploded")
	err = Use(context.Background(), store, "notes.txt", "text/plain", []byte("x"), func([]byte) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestUseRemovesEntryWhenContextCancelled(t *testing.T) {
	store := &recordingStore{}
	ctx, cancel := context.WithCancel(context.Background())

	_ = Use(ctx, store, "a.txt", "text/plain", []byte("x"), func([]byte) error {
		cancel()
		return ctx.Err()
	})

	if store.removed != 1 {
		t.Fatalf("expected one removal, got %d", store.removed)
	}
	if store.removeCtxErr != nil {
		t.Fatalf("expected removal context to outlive cancellation, got %v", store.removeCtxErr)
	}
}

func TestUniqueKeyNeverCollides(t *testing.T) {
	seen := make(map[string]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := UniqueKey("same.png")
			mu.Lock()
			seen[key] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Fatalf("expected 50 unique keys, got %d", len(seen))
	}
	for key := range seen {
		if !strings.HasSuffix(key, "-same.png") {
			t.Fatalf("key lost filename: %s", key)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd":  "passwd",
		"My Report (1).PDF": "My_Report_1.pdf",
		"":                  "file",
		"...":               "file",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape", "text/plain", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestGCSStoreRemoveTreatsNotFoundAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"uploads-bucket"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	store, err := NewGCSStore(context.Background(), "uploads-bucket", "chat-uploads",
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("new gcs store: %v", err)
	}

	if err := store.Remove(context.Background(), Entry{Key: "abc-photo.png"}); err != nil {
		t.Fatalf("expected not-found delete to succeed, got %v", err)
	}
	if got := store.objectPath("abc-photo.png"); got != "chat-uploads/abc-photo.png" {
		t.Fatalf("unexpected object path: %s", got)
	}
}

func TestWithRemoveHookReportsBackend(t *testing.T) {
	var backends []string
	store := WithRemoveHook(&recordingStore{}, func(backend string) {
		backends = append(backends, backend)
	})

	if err := Use(context.Background(), store, "a.txt", "text/plain", []byte("x"), func([]byte) error { return nil }); err != nil {
		t.Fatalf("use: %v", err)
	}
	if len(backends) != 1 || backends[0] != "recording" {
		t.Fatalf("unexpected hook calls: %v", backends)
	}
}

type recordingStore struct {
	removed      int
	removeCtxErr error
}

func (s *recordingStore) Backend() string { return "recording" }

func (s *recordingStore) Put(_ context.Context, key, contentType string, _ []byte) (Entry, error) {
	return Entry{Key: key, ContentType: contentType}, nil
}

func (s *recordingStore) Read(context.Context, Entry) ([]byte, error) {
	return []byte("x"), nil
}

func (s *recordingStore) Remove(ctx context.Context, _ Entry) error {
	s.removed++
	s.removeCtxErr = ctx.Err()
	return nil
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be empty, found %d entries", len(entries))
	}
}
