// Package llm resolves the completion backend for a query, calls it, and
// parses the structured REASONING/ANSWER reply.
package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownProvider   = errors.New("unknown llm provider")
	ErrMissingCredential = errors.New("api key required")
	ErrUnknownModel      = errors.New("unsupported model")
)

// Provider is the closed set of completion backends.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderGroq  Provider = "groq"
)

// LocalModelName is reported as model_used for every local completion.
const LocalModelName = "Local LLM (LM Studio)"

const (
	maxOutputTokens = 1024
	minOutputTokens = 128
)

type Model struct {
	ID            string
	Name          string
	ContextWindow int
}

// Capability describes what a provider needs and offers.
type Capability struct {
	Provider           Provider
	BaseURL            string
	RequiresCredential bool
	Models             []Model
	DefaultModel       string
}

func (c Capability) model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// GroqModels is the allow-list for the hosted provider.
var GroqModels = []Model{
	{ID: "llama3-8b-8192", Name: "Llama-3 8B", ContextWindow: 8192},
	{ID: "llama3-70b-8192", Name: "Llama-3 70B", ContextWindow: 8192},
	{ID: "gemma-7b-it", Name: "Gemma 7B", ContextWindow: 8192},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", ContextWindow: 32768},
}

// Selection is a validated provider, endpoint, credential and model.
type Selection struct {
	Provider Provider
	BaseURL  string
	APIKey   string
	Model    Model
}

// MaxTokens caps the reply so prompt plus output fit the model's context
// window, estimating four characters per token.
func (s Selection) MaxTokens(prompt string) int {
	n := s.Model.ContextWindow - len(prompt)/4
	if n > maxOutputTokens {
		n = maxOutputTokens
	}
	if n < minOutputTokens {
		n = minOutputTokens
	}
	return n
}

type Registry struct {
	caps map[Provider]Capability
}

func NewRegistry(localURL string, localContextWindow int, groqURL string) *Registry {
	return &Registry{caps: map[Provider]Capability{
		ProviderLocal: {
			Provider: ProviderLocal,
			BaseURL:  localURL,
			Models: []Model{
				{ID: "local-model", Name: LocalModelName, ContextWindow: localContextWindow},
			},
			DefaultModel: "local-model",
		},
		ProviderGroq: {
			Provider:           ProviderGroq,
			BaseURL:            groqURL,
			RequiresCredential: true,
			Models:             GroqModels,
			DefaultModel:       GroqModels[0].ID,
		},
	}}
}

func (r *Registry) Capability(p Provider) (Capability, bool) {
	c, ok := r.caps[p]
	return c, ok
}

// Resolve validates a provider choice, model id and credential. The model id
// is ignored for providers that serve a single model.
func (r *Registry) Resolve(choice, modelID, apiKey string) (Selection, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(choice)))
	c, ok := r.caps[p]
	if !ok {
		return Selection{}, fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownProvider, choice, ProviderLocal, ProviderGroq)
	}

	if c.RequiresCredential && strings.TrimSpace(apiKey) == "" {
		return Selection{}, fmt.Errorf("%w for provider %s", ErrMissingCredential, p)
	}

	id := c.DefaultModel
	if len(c.Models) > 1 && modelID != "" {
		id = modelID
	}
	m, ok := c.model(id)
	if !ok {
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	return Selection{Provider: p, BaseURL: c.BaseURL, APIKey: apiKey, Model: m}, nil
}
