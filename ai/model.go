package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}

// Model represents a generic completion model container that uses a function
// variable for provider-specific logic.
type Model struct {
	ModelName string
	APIKey    string
	BaseURL   string
	client    *http.Client

	// callFunc is the implementation for each provider
	callFunc func(ctx context.Context, model *Model, messages []Message) (AIMessage, error)

	// Options pointer variables - use nil to represent option not set
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	StopSequences *[]string
}

// Call makes a single call to the model with the full message history.
func (m *Model) Call(ctx context.Context, messages []Message) (AIMessage, error) {
	if m.callFunc == nil {
		return AIMessage{}, fmt.Errorf("model %s has no provider function", m.ModelName)
	}
	return m.callFunc(ctx, m, messages)
}

// Complete is a convenience wrapper for single-prompt calls. It sends the
// prompt as one user message and returns the trimmed response text.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.Call(ctx, []Message{UserMessage{Role: UserRole, Content: prompt}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// WithTemperature sets the temperature for the model and returns the model for chaining
func (m *Model) WithTemperature(temperature float64) *Model {
	m.Temperature = &temperature
	return m
}

// WithMaxTokens sets the maximum tokens for the model and returns the model for chaining
func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.MaxTokens = &maxTokens
	return m
}

// WithTopP sets the top_p parameter for the model and returns the model for chaining
func (m *Model) WithTopP(topP float64) *Model {
	m.TopP = &topP
	return m
}

// WithStopSequences sets the stop sequences for the model and returns the model for chaining
func (m *Model) WithStopSequences(sequences []string) *Model {
	m.StopSequences = &sequences
	return m
}

// SetCallFunc overrides the provider function. Not required most of the time
// unless you are using a non standard provider.
func (m *Model) SetCallFunc(callFunc func(ctx context.Context, model *Model, messages []Message) (AIMessage, error)) {
	m.callFunc = callFunc
}

// ExtractJSON strips a markdown code fence from the content if present and
// returns the inner JSON text. Models frequently wrap structured output in
// ```json fences despite instructions not to.
func ExtractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
