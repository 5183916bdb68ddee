package adapters

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"modeium/backend/internal/llm"
	"modeium/backend/internal/models"
	"modeium/backend/internal/normalize"
	"modeium/backend/internal/scratch"
)

var (
	ErrUnknownVariant = errors.New("unknown message variant")
	ErrNoProvider     = errors.New("no client configured for provider")
)

// Sampling overrides provider defaults when set.
type Sampling struct {
	Temperature *float64
	TopP        *float64
}

func FreeTierSampling() Sampling {
	return Sampling{Temperature: llm.Float(0.6), TopP: llm.Float(0.95)}
}

// Text answers a message with the caller's credential and returns the output
// verbatim.
type Text struct {
	Model  models.Descriptor
	Client llm.Completer
}

func (a Text) Handle(ctx context.Context, in Input) Result {
	if failure := missingFields(messageField(in.Message), apiKeyField(in.APIKey)); failure != nil {
		return failure
	}

	completion, err := a.Client.Complete(ctx, llm.CompletionRequest{
		APIKey: in.APIKey,
		Model:  a.Model.UpstreamModel(false, false),
		System: systemPrompt,
		Prompt: in.Message,
	})
	if err != nil {
		return upstreamFailure(err, in.APIKey)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return emptyResponse(a.Model.Name)
	}
	return &Success{BotResponse: completion.Content}
}

// FreeTier answers a message with the server-held credential and cleans the
// output before returning it.
type FreeTier struct {
	Model     models.Descriptor
	Client    llm.Completer
	ServerKey string
	Sampling  Sampling
}

func (a FreeTier) Handle(ctx context.Context, in Input) Result {
	if failure := missingFields(messageField(in.Message)); failure != nil {
		return failure
	}
	if failure := requireServerKey(a.Model, a.ServerKey); failure != nil {
		return failure
	}

	completion, err := a.Client.Complete(ctx, llm.CompletionRequest{
		APIKey:      a.ServerKey,
		Model:       a.Model.UpstreamModel(false, false),
		Prompt:      in.Message,
		Temperature: a.Sampling.Temperature,
		TopP:        a.Sampling.TopP,
	})
	if err != nil {
		return upstreamFailure(err, a.ServerKey)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return emptyResponse(a.Model.Name)
	}
	return &Success{BotResponse: normalize.Response(completion.Content)}
}

// File answers a message about one upload. The upload is staged in Store for
// the duration of the call and removed afterwards whatever the outcome.
// Models without a credential requirement use ServerKey and get free-tier
// sampling and output cleaning.
type File struct {
	Model     models.Descriptor
	Client    llm.Completer
	Store     scratch.Store
	ServerKey string
}

func (a File) Handle(ctx context.Context, in Input) Result {
	freeTier := !a.Model.RequiresCredential

	checks := []fieldCheck{fileField(in.File), messageField(in.Message)}
	if !freeTier {
		checks = append(checks, apiKeyField(in.APIKey))
	}
	if failure := missingFields(checks...); failure != nil {
		return failure
	}

	apiKey := in.APIKey
	if freeTier {
		if failure := requireServerKey(a.Model, a.ServerKey); failure != nil {
			return failure
		}
		apiKey = a.ServerKey
	}

	var result Result
	err := scratch.Use(ctx, a.Store, in.File.Name, in.File.MIMEType, in.File.Data, func(staged []byte) error {
		upload := Upload{Name: in.File.Name, MIMEType: in.File.MIMEType, Data: staged}
		result = a.complete(ctx, apiKey, freeTier, in.Message, upload)
		if failure, ok := result.(*Failure); ok {
			return failure
		}
		return nil
	})
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return failure
		}
		return upstreamFailure(err, apiKey)
	}
	return result
}

func (a File) complete(ctx context.Context, apiKey string, freeTier bool, message string, upload Upload) Result {
	req := llm.CompletionRequest{APIKey: apiKey}
	if freeTier {
		sampling := FreeTierSampling()
		req.Temperature, req.TopP = sampling.Temperature, sampling.TopP
	}

	var image *ImagePayload
	if upload.IsImage() {
		encoded := base64.StdEncoding.EncodeToString(upload.Data)
		req.Model = a.Model.UpstreamModel(true, false)
		req.Prompt = message
		req.Image = &llm.Image{MIMEType: upload.MIMEType, Base64: encoded}
		image = &ImagePayload{Data: encoded, Type: upload.MIMEType, Name: upload.Name}
	} else {
		req.Model = a.Model.UpstreamModel(false, true)
		req.System = systemPrompt
		req.Prompt = documentPrompt(message, upload)
	}

	completion, err := a.Client.Complete(ctx, req)
	if err != nil {
		return upstreamFailure(err, apiKey)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return emptyResponse(a.Model.Name)
	}

	reply := completion.Content
	if freeTier {
		reply = normalize.Response(reply)
	}
	return &Success{BotResponse: reply, Image: image}
}

func requireServerKey(model models.Descriptor, key string) *Failure {
	if strings.TrimSpace(key) != "" {
		return nil
	}
	return &Failure{
		Kind:    KindUpstreamError,
		Message: fmt.Sprintf("%s is unavailable: server credential for %s is not configured", model.Name, model.Provider),
	}
}

// Factory builds the adapter serving one model and variant.
type Factory struct {
	Clients    map[string]llm.Completer
	Store      scratch.Store
	ServerKeys map[string]string
}

func (f Factory) For(model models.Descriptor, variant string) (Adapter, error) {
	client, ok := f.Clients[model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, model.Provider)
	}
	serverKey := f.ServerKeys[model.Provider]

	switch variant {
	case models.VariantOnlyMessage:
		if model.RequiresCredential {
			return Text{Model: model, Client: client}, nil
		}
		return FreeTier{Model: model, Client: client, ServerKey: serverKey, Sampling: FreeTierSampling()}, nil
	case models.VariantFile:
		if f.Store == nil {
			return nil, errors.New("file variant requires a scratch store")
		}
		return File{Model: model, Client: client, Store: f.Store, ServerKey: serverKey}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
}

// Outcome is the metrics label for a result.
func Outcome(result Result) string {
	failure, ok := result.(*Failure)
	if !ok {
		return "success"
	}
	switch failure.Kind {
	case KindMissingFields:
		return "missing_fields"
	case KindEmptyUpstreamResponse:
		return "empty_response"
	default:
		return "upstream_error"
	}
}
