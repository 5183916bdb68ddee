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

// OpenAI talks to any OpenAI-compatible /chat/completions endpoint. Groq is
// served by the same client with a different base URL.
type OpenAI struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAI(name, baseURL string, httpClient *http.Client) OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return OpenAI{
		name:       name,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c OpenAI) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if err := req.validate(); err != nil {
		return Completion{}, err
	}

	messages := make([]openAIMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	if req.Image != nil {
		messages = append(messages, openAIMessage{
			Role: "user",
			Content: []openAIContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: req.Image.DataURL()}},
			},
		})
	} else {
		messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})
	}

	payload, err := json.Marshal(openAIRequest{
		Model:       strings.TrimSpace(req.Model),
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      false,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal %s request: %w", c.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("build %s request: %w", c.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(req.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("request %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return Completion{}, readStatusError(c.name, resp)
	}

	var parsed openAIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return Completion{}, errors.New(strings.TrimSpace(parsed.Error.Message))
	}

	out := Completion{Model: parsed.Model}
	if len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != nil {
		out.Content = *parsed.Choices[0].Message.Content
	}
	return out, nil
}
