package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"secondbrain/internal/observability"
)

var ErrBackendUnavailable = errors.New("llm backend unavailable")

// BackendError carries an actionable hint in place of the raw transport error.
type BackendError struct {
	Provider Provider
	Hint     string
	Err      error
}

func (e *BackendError) Error() string { return e.Hint }

func (e *BackendError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, sel Selection, prompt string, maxTokens int, temperature float32) (string, error)
}

// Client talks to any OpenAI-compatible chat completions endpoint. LM Studio
// and Groq both expose one.
type Client struct {
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{timeout: timeout, httpClient: &http.Client{}}
}

func (c *Client) Complete(ctx context.Context, sel Selection, prompt string, maxTokens int, temperature float32) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := observability.StartLLMSpan(ctx, string(sel.Provider), sel.Model.ID)
	defer span.End()

	cfg := goopenai.DefaultConfig(sel.APIKey)
	cfg.BaseURL = sel.BaseURL
	cfg.HTTPClient = c.httpClient
	client := goopenai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       sel.Model.ID,
		Messages:    []goopenai.ChatCompletionMessage{{Role: goopenai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		berr := c.classify(ctx, sel, err)
		observability.RecordError(span, berr.Err)
		return "", berr
	}
	if len(resp.Choices) == 0 {
		berr := &BackendError{Provider: sel.Provider, Hint: "The model returned an empty response.", Err: errors.New("no choices")}
		observability.RecordError(span, berr.Err)
		return "", berr
	}

	observability.RecordLLMUsage(span, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) classify(ctx context.Context, sel Selection, err error) *BackendError {
	berr := &BackendError{Provider: sel.Provider, Err: err}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		berr.Hint = fmt.Sprintf("The %s backend did not respond within %s. Try again or pick a smaller model.", sel.Provider, c.timeout)
		return berr
	}

	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch sel.Provider {
	case ProviderGroq:
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			berr.Hint = "Groq rejected the API key. Check the key and try again."
		case http.StatusTooManyRequests:
			berr.Hint = "Groq rate limit or quota exceeded. Wait a moment and try again."
		case 0:
			berr.Hint = "Could not reach Groq. Check your network connection."
		default:
			berr.Hint = fmt.Sprintf("Groq returned an error (HTTP %d).", status)
		}
	default:
		if status == 0 {
			berr.Hint = fmt.Sprintf("Could not reach the local LLM at %s. Make sure LM Studio is running with its server started.", sel.BaseURL)
		} else {
			berr.Hint = fmt.Sprintf("The local LLM returned an error (HTTP %d). Check that a model is loaded in LM Studio.", status)
		}
	}
	return berr
}
