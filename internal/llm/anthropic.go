package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// Anthropic talks to the Messages API.
type Anthropic struct {
	baseURL    string
	httpClient *http.Client
}

func NewAnthropic(baseURL string, httpClient *http.Client) Anthropic {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Anthropic{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicContentPart `json:"content"`
}

type anthropicContentPart struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c Anthropic) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if err := req.validate(); err != nil {
		return Completion{}, err
	}

	parts := make([]anthropicContentPart, 0, 2)
	if req.Image != nil {
		parts = append(parts, anthropicContentPart{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: req.Image.MIMEType,
				Data:      req.Image.Base64,
			},
		})
	}
	parts = append(parts, anthropicContentPart{Type: "text", Text: req.Prompt})

	payload, err := json.Marshal(anthropicRequest{
		Model:       strings.TrimSpace(req.Model),
		System:      strings.TrimSpace(req.System),
		Messages:    []anthropicMessage{{Role: "user", Content: parts}},
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", strings.TrimSpace(req.APIKey))
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("request anthropic: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return Completion{}, readStatusError("anthropic", resp)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return Completion{}, errors.New(strings.TrimSpace(parsed.Error.Message))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Completion{Model: parsed.Model, Content: text.String()}, nil
}
