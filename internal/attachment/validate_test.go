package attachment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateAcceptsAllowedTypes(t *testing.T) {
	for _, mimeType := range []string{"text/plain", "image/png", "image/jpeg", "application/pdf", "text/plain; charset=utf-8"} {
		if err := Validate(Descriptor{Name: "f", MIMEType: mimeType, Size: 10}); err != nil {
			t.Errorf("Validate(%s): unexpected error %v", mimeType, err)
		}
	}
}

func TestValidateRejectsDisallowedType(t *testing.T) {
	for _, mimeType := range []string{"image/gif", "application/zip", "text/html", ""} {
		err := Validate(Descriptor{Name: "f", MIMEType: mimeType, Size: 10})
		if !errors.Is(err, ErrInvalidType) {
			t.Errorf("Validate(%q): expected ErrInvalidType, got %v", mimeType, err)
		}
	}
}

func TestValidateSizeBoundary(t *testing.T) {
	if err := Validate(Descriptor{MIMEType: "image/png", Size: MaxSizeBytes}); err != nil {
		t.Fatalf("expected exactly 5 MiB to pass, got %v", err)
	}
	err := Validate(Descriptor{MIMEType: "image/png", Size: MaxSizeBytes + 1})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestValidateChecksTypeBeforeSize(t *testing.T) {
	err := Validate(Descriptor{MIMEType: "video/mp4", Size: MaxSizeBytes * 2})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestSelectionRejectionClearsPreviousFile(t *testing.T) {
	var sel Selection
	if err := sel.Select(Descriptor{Name: "a.png", MIMEType: "image/png", Size: 3}); err != nil {
		t.Fatalf("select valid file: %v", err)
	}

	if err := sel.Select(Descriptor{Name: "b.gif", MIMEType: "image/gif", Size: 3}); err == nil {
		t.Fatal("expected rejection")
	}
	if _, ok := sel.Current(); ok {
		t.Fatal("expected selection to be cleared after invalid type")
	}

	_ = sel.Select(Descriptor{Name: "a.png", MIMEType: "image/png", Size: 3})
	if err := sel.Select(Descriptor{Name: "big.pdf", MIMEType: "application/pdf", Size: MaxSizeBytes + 1}); err == nil {
		t.Fatal("expected rejection")
	}
	if _, ok := sel.Current(); ok {
		t.Fatal("expected selection to be cleared after oversized file")
	}
}

func TestSelectionTakeEmptiesSlot(t *testing.T) {
	var sel Selection
	_ = sel.Select(Descriptor{Name: "notes.txt", MIMEType: "text/plain", Size: 5})

	d, ok := sel.Take()
	if !ok || d.Name != "notes.txt" {
		t.Fatalf("unexpected take result: %+v %v", d, ok)
	}
	if _, ok := sel.Take(); ok {
		t.Fatal("expected slot to be empty after take")
	}
}

func TestOpenDetectsMediaType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if d.MIMEType != "text/plain" {
		t.Fatalf("unexpected media type: %s", d.MIMEType)
	}
	if d.Size != 5 || string(d.Data) != "hello" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestDetectMediaTypeSniffsUnknownExtension(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if got := DetectMediaType("image.unknownext", png); got != "image/png" {
		t.Fatalf("expected sniffed image/png, got %s", got)
	}
}
