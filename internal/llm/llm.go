// Package llm holds the request/response clients for the upstream chat
// completion providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxErrorBodyBytes = 8 * 1024
	maxResponseBytes  = 4 * 1024 * 1024
)

var (
	ErrMissingAPIKey = errors.New("api key is required")
	ErrEmptyPrompt   = errors.New("prompt is required")
)

// Image is an inlined image part.
type Image struct {
	MIMEType string
	Base64   string
}

func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

type CompletionRequest struct {
	APIKey      string
	Model       string
	System      string
	Prompt      string
	Image       *Image
	Temperature *float64
	TopP        *float64
}

func (r CompletionRequest) validate() error {
	if strings.TrimSpace(r.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Completion is the text of the first choice. Content may be empty when the
// provider returned nothing.
type Completion struct {
	Model   string
	Content string
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

func readStatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func Float(v float64) *float64 {
	return &v
}
