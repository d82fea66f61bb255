// Package ai wraps the completion API behind a narrow interface the router
// can call and tests can fake.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Completer produces a single text completion for a role-tagged message list.
// Implementations must honor ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// OpenAIResponder is the production Completer.
type OpenAIResponder struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIResponder builds a responder with a bounded-timeout HTTP client.
func NewOpenAIResponder(apiKey, model string) *OpenAIResponder {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	return &OpenAIResponder{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: 0.3,
	}
}

// Complete calls the chat completion endpoint once. Errors are returned to
// the caller, which replaces them with the canned fallback reply.
func (r *OpenAIResponder) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: r.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	log.Debug().
		Str("model", r.model).
		Int("prompt_messages", len(messages)).
		Msg("Completion received")
	return resp.Choices[0].Message.Content, nil
}

// Disabled is the Completer used when no API key is configured. Every call
// fails, which routes every LLM fallback to the canned reply.
type Disabled struct{}

func (Disabled) Complete(context.Context, []openai.ChatCompletionMessage) (string, error) {
	return "", errors.New("completion api not configured")
}
