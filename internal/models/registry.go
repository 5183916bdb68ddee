package models

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
)

const (
	VariantOnlyMessage = "only_message"
	VariantFile        = "file"
)

var (
	ErrUnknownModel = errors.New("unknown model")

	parenthesizedSuffix = regexp.MustCompile(`\s+\(.*\)`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// Descriptor is one row of the registry.
type Descriptor struct {
	Name               string `yaml:"name" json:"name"`
	RequiresCredential bool   `yaml:"requires_credential" json:"requiresCredential"`
	Icon               string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Provider           string `yaml:"provider" json:"provider"`
	TextModel          string `yaml:"text_model" json:"-"`
	ImageModel         string `yaml:"image_model,omitempty" json:"-"`
	DocumentModel      string `yaml:"document_model,omitempty" json:"-"`
}

func (d Descriptor) Slug() string {
	return Slug(d.Name)
}

// UpstreamModel picks the provider model for a request shape.
func (d Descriptor) UpstreamModel(hasImage, hasDocument bool) string {
	switch {
	case hasImage && d.ImageModel != "":
		return d.ImageModel
	case hasDocument && d.DocumentModel != "":
		return d.DocumentModel
	default:
		return d.TextModel
	}
}

// Slug derives the routing identifier from a display name: lower-case, drop a
// trailing parenthesized suffix, remove whitespace.
func Slug(name string) string {
	slug := strings.ToLower(name)
	slug = parenthesizedSuffix.ReplaceAllString(slug, "")
	return whitespaceRun.ReplaceAllString(slug, "")
}

// Route returns the message endpoint path for a model.
func Route(d Descriptor, hasAttachment bool) string {
	variant := VariantOnlyMessage
	if hasAttachment {
		variant = VariantFile
	}
	return "/message/" + d.Slug() + "/" + variant
}

// Registry is immutable after construction.
type Registry struct {
	ordered []Descriptor
	bySlug  map[string]Descriptor
}

func NewRegistry(rows []Descriptor) (*Registry, error) {
	if len(rows) == 0 {
		return nil, errors.New("model registry must contain at least one model")
	}

	r := &Registry{
		ordered: make([]Descriptor, 0, len(rows)),
		bySlug:  make(map[string]Descriptor, len(rows)),
	}
	for _, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		if row.Name == "" {
			return nil, errors.New("model name is required")
		}
		slug := row.Slug()
		if slug == "" {
			return nil, fmt.Errorf("model %q has an empty slug", row.Name)
		}
		if _, exists := r.bySlug[slug]; exists {
			return nil, fmt.Errorf("duplicate model slug %q", slug)
		}
		switch row.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq:
		default:
			return nil, fmt.Errorf("model %q: unsupported provider %q", row.Name, row.Provider)
		}
		if strings.TrimSpace(row.TextModel) == "" {
			return nil, fmt.Errorf("model %q: text_model is required", row.Name)
		}
		r.bySlug[slug] = row
		r.ordered = append(r.ordered, row)
	}
	return r, nil
}

func (r *Registry) Lookup(slug string) (Descriptor, error) {
	d, ok := r.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, slug)
	}
	return d, nil
}

// ByName finds a model by display name or slug.
func (r *Registry) ByName(name string) (Descriptor, error) {
	return r.Lookup(Slug(name))
}

func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Default() Descriptor {
	return r.ordered[0]
}

func Builtin() *Registry {
	r, err := NewRegistry(builtinModels)
	if err != nil {
		panic(fmt.Sprintf("builtin model registry: %v", err))
	}
	return r
}

var builtinModels = []Descriptor{
	{Name: "GPT-4", RequiresCredential: true, Provider: ProviderOpenAI, TextModel: "gpt-4o-mini", ImageModel: "gpt-4o-mini", DocumentModel: "gpt-4o"},
	{Name: "Claude", RequiresCredential: true, Provider: ProviderAnthropic, TextModel: "claude-3-5-sonnet-latest"},
	{Name: "Gemini", RequiresCredential: true, Provider: ProviderGemini, TextModel: "gemini-1.5-flash"},
	{Name: "DeepSeek R1", Provider: ProviderGroq, TextModel: "deepseek-r1-distill-llama-70b", ImageModel: "llama-3.2-90b-vision-preview"},
	{Name: "Llama 90b Vision Preview", Provider: ProviderGroq, TextModel: "llama-3.2-90b-vision-preview"},
	{Name: "Gamma", Provider: ProviderGroq, TextModel: "gemma2-9b-it", ImageModel: "llama-3.2-90b-vision-preview"},
}

type registryFile struct {
	Models []Descriptor `yaml:"models"`
}

// LoadFile reads a registry from YAML. An empty path yields the builtin table.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models file %s: %w", path, err)
	}

	var parsed registryFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse models file %s: %w", path, err)
	}

	r, err := NewRegistry(parsed.Models)
	if err != nil {
		return nil, fmt.Errorf("models file %s: %w", path, err)
	}
	return r, nil
}
