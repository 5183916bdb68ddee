package adapters

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"modeium/backend/internal/llm"
	"modeium/backend/internal/models"
	"modeium/backend/internal/normalize"
	"modeium/backend/internal/scratch"
)

type stubCompleter struct {
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Model: req.Model, Content: s.reply}, nil
}

func mustModel(t *testing.T, name string) models.Descriptor {
	t.Helper()
	d, err := models.Builtin().ByName(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return d
}

func newLocalStore(t *testing.T) (scratch.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := scratch.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store, dir
}

func assertNoStagedFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be empty, found %d entries", len(entries))
	}
}

func TestTextReportsEachMissingField(t *testing.T) {
	client := &stubCompleter{reply: "unused"}
	adapter := Text{Model: mustModel(t, "GPT-4"), Client: client}

	result := adapter.Handle(context.Background(), Input{Message: "hi"})
	failure, ok := result.(*Failure)
	if !ok || failure.Kind != KindMissingFields {
		t.Fatalf("expected missing fields failure, got %#v", result)
	}
	if failure.Status() != 400 {
		t.Fatalf("expected status 400, got %d", failure.Status())
	}
	details := failure.Details.(map[string]*string)
	if details["message"] != nil {
		t.Fatalf("message should not be reported missing")
	}
	if details["apiKey"] == nil || *details["apiKey"] != "No API key provided" {
		t.Fatalf("unexpected apiKey detail: %v", details["apiKey"])
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no upstream call, got %d", len(client.requests))
	}
}

func TestTextReturnsOutputVerbatim(t *testing.T) {
	client := &stubCompleter{reply: "  <b>kept as is</b>\n"}
	adapter := Text{Model: mustModel(t, "GPT-4"), Client: client}

	result := adapter.Handle(context.Background(), Input{Message: "hi", APIKey: "sk-user"})
	success, ok := result.(*Success)
	if !ok {
		t.Fatalf("expected success, got %#v", result)
	}
	if success.BotResponse != "  <b>kept as is</b>\n" {
		t.Fatalf("expected verbatim output, got %q", success.BotResponse)
	}

	req := client.requests[0]
	if req.Model != "gpt-4o-mini" || req.System != systemPrompt || req.APIKey != "sk-user" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestTextRedactsCredentialFromUpstreamError(t *testing.T) {
	client := &stubCompleter{err: errors.New("invalid key sk-secret-123 rejected")}
	adapter := Text{Model: mustModel(t, "Claude"), Client: client}

	result := adapter.Handle(context.Background(), Input{Message: "hi", APIKey: "sk-secret-123"})
	failure, ok := result.(*Failure)
	if !ok || failure.Kind != KindUpstreamError {
		t.Fatalf("expected upstream failure, got %#v", result)
	}
	if strings.Contains(failure.Message, "sk-secret-123") {
		t.Fatalf("credential leaked into message: %q", failure.Message)
	}
	if failure.Status() != 500 {
		t.Fatalf("expected status 500, got %d", failure.Status())
	}
}

func TestFreeTierUsesServerKeyAndCleansOutput(t *testing.T) {
	client := &stubCompleter{reply: "<think>internal</think>\n\nHello <b>there</b>\n"}
	adapter := FreeTier{Model: mustModel(t, "DeepSeek R1"), Client: client, ServerKey: "gsk-server", Sampling: FreeTierSampling()}

	result := adapter.Handle(context.Background(), Input{Message: "hi", APIKey: "ignored"})
	success, ok := result.(*Success)
	if !ok {
		t.Fatalf("expected success, got %#v", result)
	}
	if success.BotResponse != "Hello there" {
		t.Fatalf("unexpected cleaned output: %q", success.BotResponse)
	}

	req := client.requests[0]
	if req.APIKey != "gsk-server" {
		t.Fatalf("expected server key, got %q", req.APIKey)
	}
	if req.Temperature == nil || *req.Temperature != 0.6 || req.TopP == nil || *req.TopP != 0.95 {
		t.Fatalf("unexpected sampling: %+v", req)
	}
	if req.System != "" {
		t.Fatalf("free tier should not send a system prompt, got %q", req.System)
	}
}

func TestFreeTierEmptyReplyIsAnError(t *testing.T) {
	adapter := FreeTier{Model: mustModel(t, "Gamma"), Client: &stubCompleter{reply: "  "}, ServerKey: "gsk"}

	failure, ok := adapter.Handle(context.Background(), Input{Message: "hi"}).(*Failure)
	if !ok || failure.Kind != KindEmptyUpstreamResponse {
		t.Fatalf("expected empty response failure, got %#v", failure)
	}
	if failure.Details != "Empty or null response from the AI" {
		t.Fatalf("unexpected details: %v", failure.Details)
	}
}

func TestFreeTierMarkupOnlyReplyFallsBack(t *testing.T) {
	adapter := FreeTier{Model: mustModel(t, "Gamma"), Client: &stubCompleter{reply: "<think>only</think>"}, ServerKey: "gsk"}

	success, ok := adapter.Handle(context.Background(), Input{Message: "hi"}).(*Success)
	if !ok || success.BotResponse != normalize.Fallback {
		t.Fatalf("expected fallback reply, got %#v", success)
	}
}

func TestFreeTierWithoutServerKeyFails(t *testing.T) {
	client := &stubCompleter{reply: "x"}
	adapter := FreeTier{Model: mustModel(t, "Gamma"), Client: client}

	failure, ok := adapter.Handle(context.Background(), Input{Message: "hi"}).(*Failure)
	if !ok || failure.Kind != KindUpstreamError {
		t.Fatalf("expected upstream failure, got %#v", failure)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no upstream call")
	}
}

func TestFileImageReturnsPayloadAndCleansUp(t *testing.T) {
	store, dir := newLocalStore(t)
	client := &stubCompleter{reply: "a cat"}
	adapter := File{Model: mustModel(t, "GPT-4"), Client: client, Store: store}

	result := adapter.Handle(context.Background(), Input{
		Message: "what is this",
		APIKey:  "sk-user",
		File:    &Upload{Name: "cat.png", MIMEType: "image/png", Data: []byte("png-bytes")},
	})
	success, ok := result.(*Success)
	if !ok {
		t.Fatalf("expected success, got %#v", result)
	}
	if success.Image == nil || success.Image.Data != "cG5nLWJ5dGVz" || success.Image.Type != "image/png" || success.Image.Name != "cat.png" {
		t.Fatalf("unexpected image payload: %+v", success.Image)
	}

	req := client.requests[0]
	if req.Image == nil || req.Image.Base64 != "cG5nLWJ5dGVz" || req.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected image request: %+v", req)
	}
	assertNoStagedFiles(t, dir)
}

func TestFileDocumentInlinesContent(t *testing.T) {
	store, dir := newLocalStore(t)
	client := &stubCompleter{reply: "summary"}
	adapter := File{Model: mustModel(t, "GPT-4"), Client: client, Store: store}

	result := adapter.Handle(context.Background(), Input{
		Message: "summarize",
		APIKey:  "sk-user",
		File:    &Upload{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("line one\r\nline two")},
	})
	success, ok := result.(*Success)
	if !ok || success.Image != nil {
		t.Fatalf("expected document success without image, got %#v", result)
	}

	req := client.requests[0]
	if req.Model != "gpt-4o" || req.System != systemPrompt {
		t.Fatalf("unexpected document request: %+v", req)
	}
	if req.Prompt != "summarize\n\nFile content:\nline one\nline two" {
		t.Fatalf("unexpected prompt: %q", req.Prompt)
	}
	assertNoStagedFiles(t, dir)
}

func TestFileUnreadablePDFIsSentAsBinary(t *testing.T) {
	store, _ := newLocalStore(t)
	client := &stubCompleter{reply: "ok"}
	adapter := File{Model: mustModel(t, "GPT-4"), Client: client, Store: store}

	adapter.Handle(context.Background(), Input{
		Message: "read",
		APIKey:  "sk-user",
		File:    &Upload{Name: "broken.pdf", MIMEType: "application/pdf", Data: []byte{'%', 'P', 0xff}},
	})

	want := "read\n\nFile content in binary format: %Pÿ"
	if got := client.requests[0].Prompt; got != want {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestFileFreeTierDoesNotRequireAPIKey(t *testing.T) {
	store, _ := newLocalStore(t)
	client := &stubCompleter{reply: "<think>x</think>seen"}
	adapter := File{Model: mustModel(t, "Gamma"), Client: client, Store: store, ServerKey: "gsk-server"}

	result := adapter.Handle(context.Background(), Input{
		Message: "look",
		File:    &Upload{Name: "a.jpg", MIMEType: "image/jpeg", Data: []byte("jpg")},
	})
	success, ok := result.(*Success)
	if !ok || success.BotResponse != "seen" {
		t.Fatalf("expected cleaned success, got %#v", result)
	}
	req := client.requests[0]
	if req.APIKey != "gsk-server" || req.Model != "llama-3.2-90b-vision-preview" || req.Temperature == nil {
		t.Fatalf("unexpected free-tier file request: %+v", req)
	}
}

func TestFileMissingFieldsForFreeTierOmitAPIKey(t *testing.T) {
	store, _ := newLocalStore(t)
	adapter := File{Model: mustModel(t, "Gamma"), Client: &stubCompleter{}, Store: store, ServerKey: "gsk"}

	failure, ok := adapter.Handle(context.Background(), Input{}).(*Failure)
	if !ok || failure.Kind != KindMissingFields {
		t.Fatalf("expected missing fields, got %#v", failure)
	}
	details := failure.Details.(map[string]*string)
	if _, present := details["apiKey"]; present {
		t.Fatalf("free tier should not report apiKey: %v", details)
	}
	if details["file"] == nil || details["message"] == nil {
		t.Fatalf("expected file and message to be reported: %v", details)
	}
}

func TestFileCleansUpAfterUpstreamFailure(t *testing.T) {
	store, dir := newLocalStore(t)
	adapter := File{Model: mustModel(t, "GPT-4"), Client: &stubCompleter{err: errors.New("boom")}, Store: store}

	result := adapter.Handle(context.Background(), Input{
		Message: "x",
		APIKey:  "sk",
		File:    &Upload{Name: "a.txt", MIMEType: "text/plain", Data: []byte("x")},
	})
	if failure, ok := result.(*Failure); !ok || failure.Kind != KindUpstreamError {
		t.Fatalf("expected upstream failure, got %#v", result)
	}
	assertNoStagedFiles(t, dir)
}

func TestFactoryPicksAdapterByCredentialAndVariant(t *testing.T) {
	store, _ := newLocalStore(t)
	factory := Factory{
		Clients: map[string]llm.Completer{
			models.ProviderOpenAI: &stubCompleter{},
			models.ProviderGroq:   &stubCompleter{},
		},
		Store:      store,
		ServerKeys: map[string]string{models.ProviderGroq: "gsk"},
	}

	adapter, err := factory.For(mustModel(t, "GPT-4"), models.VariantOnlyMessage)
	if err != nil {
		t.Fatalf("for gpt-4: %v", err)
	}
	if _, ok := adapter.(Text); !ok {
		t.Fatalf("expected text adapter, got %T", adapter)
	}

	adapter, err = factory.For(mustModel(t, "Gamma"), models.VariantOnlyMessage)
	if err != nil {
		t.Fatalf("for gamma: %v", err)
	}
	if freeTier, ok := adapter.(FreeTier); !ok || freeTier.ServerKey != "gsk" {
		t.Fatalf("expected free tier adapter with server key, got %#v", adapter)
	}

	if _, err := factory.For(mustModel(t, "GPT-4"), models.VariantFile); err != nil {
		t.Fatalf("file variant: %v", err)
	}
	if _, err := factory.For(mustModel(t, "GPT-4"), "stream"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected unknown variant, got %v", err)
	}
	if _, err := factory.For(mustModel(t, "Claude"), models.VariantOnlyMessage); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected missing provider, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := map[string]Result{
		"success":        &Success{},
		"missing_fields": &Failure{Kind: KindMissingFields},
		"empty_response": &Failure{Kind: KindEmptyUpstreamResponse},
		"upstream_error": &Failure{Kind: KindUpstreamError},
	}
	for want, result := range tests {
		if got := Outcome(result); got != want {
			t.Errorf("Outcome(%#v) = %q, want %q", result, got, want)
		}
	}
}

func TestFileAcceptsEmptyTextUpload(t *testing.T) {
	store, dir := newLocalStore(t)
	client := &stubCompleter{reply: "nothing there"}
	adapter := File{Model: mustModel(t, "GPT-4"), Client: client, Store: store}

	result := adapter.Handle(context.Background(), Input{
		Message: "summarize",
		APIKey:  "sk-user",
		File:    &Upload{Name: "empty.txt", MIMEType: "text/plain", Data: []byte{}},
	})
	if _, ok := result.(*Success); !ok {
		t.Fatalf("expected success for an empty file, got %#v", result)
	}
	if len(client.requests) != 1 || client.requests[0].Prompt != "summarize\n\nFile content:\n" {
		t.Fatalf("unexpected requests: %+v", client.requests)
	}
	assertNoStagedFiles(t, dir)
}
