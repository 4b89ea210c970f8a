package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"secondbrain/internal/llm"
	"secondbrain/internal/middleware"
	"secondbrain/internal/retrieval"
	"secondbrain/internal/settings"
)

// NoContextAnswer is returned when nothing stored is relevant enough.
const NoContextAnswer = "I don't have enough information in your knowledge base to answer that question."

var ErrInvalidQuestion = errors.New("question must not be empty")

type Request struct {
	Question  string `json:"question"`
	LLMChoice string `json:"llm_choice"`
	Model     string `json:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
}

type Response struct {
	Answer     string   `json:"answer"`
	Reasoning  string   `json:"reasoning"`
	SourceURLs []string `json:"source_urls"`
	ModelUsed  string   `json:"model_used"`
}

type Retriever interface {
	RetrieveContext(ctx context.Context, question string, k int, threshold float32) (*retrieval.ContextBundle, error)
}

type SettingsProvider interface {
	Effective(ctx context.Context) *settings.Settings
}

type Service struct {
	registry    *llm.Registry
	retriever   Retriever
	completer   llm.Completer
	settings    SettingsProvider
	queryLog    *retrieval.QueryLogger
	temperature float32
}

func NewService(reg *llm.Registry, r Retriever, c llm.Completer, s SettingsProvider, ql *retrieval.QueryLogger, temperature float32) *Service {
	return &Service{
		registry:    reg,
		retriever:   r,
		completer:   c,
		settings:    s,
		queryLog:    ql,
		temperature: temperature,
	}
}

// Ask answers a question from the knowledge base. Input is validated before
// any embedding or storage work starts.
func (s *Service) Ask(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}

	sel, err := s.registry.Resolve(req.LLMChoice, req.Model, req.APIKey)
	if err != nil {
		return nil, err
	}

	set := s.settings.Effective(ctx)
	if sel.Provider == llm.ProviderLocal && set.LocalLLMURL != "" {
		sel.BaseURL = set.LocalLLMURL
	}

	var bundle *retrieval.ContextBundle
	outcome := "answered"
	defer func() {
		if err != nil {
			outcome = "failed"
		}
		s.logQuery(ctx, question, sel, bundle, outcome, time.Since(start))
	}()

	bundle, err = s.retriever.RetrieveContext(ctx, question, set.TopK, set.SimilarityThreshold)
	if errors.Is(err, retrieval.ErrNoContext) {
		outcome = "no_context"
		slog.InfoContext(ctx, "no context above threshold", "threshold", set.SimilarityThreshold)
		return &Response{
			Answer:     NoContextAnswer,
			Reasoning:  "",
			SourceURLs: []string{},
			ModelUsed:  sel.Model.Name,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := llm.BuildPrompt(bundle.Context, question)
	raw, err := s.completer.Complete(ctx, sel, prompt, sel.MaxTokens(prompt), s.temperature)
	if err != nil {
		return nil, err
	}

	reasoning, answer := llm.ParseResponse(raw)
	return &Response{
		Answer:     answer,
		Reasoning:  reasoning,
		SourceURLs: bundle.Sources,
		ModelUsed:  sel.Model.Name,
	}, nil
}

func (s *Service) logQuery(ctx context.Context, question string, sel llm.Selection, bundle *retrieval.ContextBundle, outcome string, d time.Duration) {
	entry := retrieval.QueryLogEntry{
		Question:      question,
		Provider:      string(sel.Provider),
		Model:         sel.Model.ID,
		Outcome:       outcome,
		Duration:      d,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if bundle != nil {
		entry.NumSources = len(bundle.Sources)
		entry.TopSimilarity = bundle.TopSimilarity()
	}
	s.queryLog.Log(entry)
}

// ModelInfo describes a selectable model.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
}

// ProviderInfo describes a provider for the chat front end.
type ProviderInfo struct {
	ID                 string      `json:"id"`
	RequiresCredential bool        `json:"requires_api_key"`
	DefaultModel       string      `json:"default_model"`
	Models             []ModelInfo `json:"models"`
}

func (s *Service) Providers() []ProviderInfo {
	var out []ProviderInfo
	for _, p := range []llm.Provider{llm.ProviderLocal, llm.ProviderGroq} {
		c, ok := s.registry.Capability(p)
		if !ok {
			continue
		}
		info := ProviderInfo{ID: string(p), RequiresCredential: c.RequiresCredential, DefaultModel: c.DefaultModel}
		for _, m := range c.Models {
			info.Models = append(info.Models, ModelInfo{ID: m.ID, Name: m.Name, ContextWindow: m.ContextWindow})
		}
		out = append(out, info)
	}
	return out
}
