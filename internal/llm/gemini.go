package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Gemini talks to the Generative Language generateContent endpoint.
type Gemini struct {
	baseURL    string
	httpClient *http.Client
}

func NewGemini(baseURL string, httpClient *http.Client) Gemini {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Gemini{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

type geminiResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c Gemini) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if err := req.validate(); err != nil {
		return Completion{}, err
	}

	parts := make([]geminiPart, 0, 3)
	if system := strings.TrimSpace(req.System); system != "" {
		parts = append(parts, geminiPart{Text: system})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})
	if req.Image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiBlob{MimeType: req.Image.MIMEType, Data: req.Image.Base64}})
	}

	body := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: parts}}}
	if req.Temperature != nil || req.TopP != nil {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: req.Temperature, TopP: req.TopP}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	model := strings.TrimPrefix(strings.TrimSpace(req.Model), "models/")
	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", strings.TrimSpace(req.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("request gemini: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return Completion{}, readStatusError("gemini", resp)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return Completion{}, errors.New(strings.TrimSpace(parsed.Error.Message))
	}

	var text strings.Builder
	if len(parsed.Candidates) > 0 && parsed.Candidates[0].Content != nil {
		for _, part := range parsed.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	out := Completion{Model: parsed.ModelVersion, Content: text.String()}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}
