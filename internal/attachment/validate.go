package attachment

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const MaxSizeBytes = 5 * 1024 * 1024

var (
	ErrInvalidType = errors.New("invalid type")
	ErrTooLarge    = errors.New("too large")

	allowedTypes = map[string]struct{}{
		"text/plain":      {},
		"image/png":       {},
		"image/jpeg":      {},
		"application/pdf": {},
	}
)

// Descriptor is a file picked for a single send.
type Descriptor struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

func (d Descriptor) IsImage() bool {
	return strings.HasPrefix(d.MIMEType, "image/")
}

// Validate checks type before size.
func Validate(d Descriptor) error {
	if _, ok := allowedTypes[BaseMediaType(d.MIMEType)]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidType, d.MIMEType)
	}
	if d.Size > MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, d.Size)
	}
	return nil
}

// BaseMediaType strips parameters such as charset.
func BaseMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// DetectMediaType prefers the extension and falls back to content sniffing.
func DetectMediaType(name string, data []byte) string {
	if byExt := BaseMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))); byExt != "" {
		return byExt
	}
	if len(data) > 0 {
		sniffLen := len(data)
		if sniffLen > 512 {
			sniffLen = 512
		}
		return BaseMediaType(http.DetectContentType(data[:sniffLen]))
	}
	return "application/octet-stream"
}

// Open reads a file from disk into a Descriptor. Oversized files are
// reported without reading their contents.
func Open(path string) (Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return Descriptor{}, fmt.Errorf("attachment %s is a directory", path)
	}

	d := Descriptor{Name: filepath.Base(path), Size: info.Size()}
	if d.Size > MaxSizeBytes {
		d.MIMEType = DetectMediaType(d.Name, nil)
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read attachment: %w", err)
	}
	d.Data = data
	d.Size = int64(len(data))
	d.MIMEType = DetectMediaType(d.Name, data)
	return d, nil
}

// Selection is the single attachment slot of a compose box.
type Selection struct {
	current *Descriptor
}

// Select validates d and stores it. Any rejection clears the slot.
func (s *Selection) Select(d Descriptor) error {
	if err := Validate(d); err != nil {
		s.current = nil
		return err
	}
	s.current = &d
	return nil
}

func (s *Selection) Current() (Descriptor, bool) {
	if s.current == nil {
		return Descriptor{}, false
	}
	return *s.current, true
}

// Take returns the selection and empties the slot.
func (s *Selection) Take() (Descriptor, bool) {
	d, ok := s.Current()
	s.current = nil
	return d, ok
}

func (s *Selection) Clear() {
	s.current = nil
}
