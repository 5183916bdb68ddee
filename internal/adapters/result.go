// Package adapters turns one message request into one upstream completion
// and reports the outcome as a Result.
package adapters

import (
	"context"
	"net/http"
	"strings"
)

type FailureKind string

const (
	KindMissingFields         FailureKind = "MissingFields"
	KindEmptyUpstreamResponse FailureKind = "EmptyUpstreamResponse"
	KindUpstreamError         FailureKind = "UpstreamError"
)

const systemPrompt = "You are a helpful assistant."

// Result is either *Success or *Failure.
type Result interface {
	isResult()
}

type ImagePayload struct {
	Data string `json:"data"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type Success struct {
	BotResponse string        `json:"botResponse"`
	Image       *ImagePayload `json:"image,omitempty"`
}

// Failure details are a per-field map for missing fields and a plain string
// otherwise.
type Failure struct {
	Kind    FailureKind
	Message string
	Details any
}

func (*Success) isResult() {}
func (*Failure) isResult() {}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Status is the HTTP status the failure is reported with.
func (f *Failure) Status() int {
	if f.Kind == KindMissingFields {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Upload is a file received with a message request.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (u Upload) IsImage() bool {
	return strings.HasPrefix(u.MIMEType, "image/")
}

type Input struct {
	Message string
	APIKey  string
	File    *Upload
}

type Adapter interface {
	Handle(ctx context.Context, in Input) Result
}

type fieldCheck struct {
	name    string
	present bool
	missing string
}

// missingFields returns nil when every field is present.
func missingFields(checks ...fieldCheck) *Failure {
	details := make(map[string]*string, len(checks))
	anyMissing := false
	for _, check := range checks {
		if check.present {
			details[check.name] = nil
			continue
		}
		reason := check.missing
		details[check.name] = &reason
		anyMissing = true
	}
	if !anyMissing {
		return nil
	}
	return &Failure{Kind: KindMissingFields, Message: "Missing required fields", Details: details}
}

func messageField(message string) fieldCheck {
	return fieldCheck{name: "message", present: strings.TrimSpace(message) != "", missing: "No message provided"}
}

func apiKeyField(apiKey string) fieldCheck {
	return fieldCheck{name: "apiKey", present: strings.TrimSpace(apiKey) != "", missing: "No API key provided"}
}

func fileField(file *Upload) fieldCheck {
	return fieldCheck{name: "file", present: file != nil, missing: "No file provided"}
}

// upstreamFailure wraps err with every occurrence of secret removed.
func upstreamFailure(err error, secret string) *Failure {
	return &Failure{Kind: KindUpstreamError, Message: redact(err.Error(), secret)}
}

func emptyResponse(modelName string) *Failure {
	return &Failure{
		Kind:    KindEmptyUpstreamResponse,
		Message: "No response received from " + modelName,
		Details: "Empty or null response from the AI",
	}
}

func redact(text, secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "[redacted]")
}
