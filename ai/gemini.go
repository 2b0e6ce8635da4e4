package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Gemini-specific request/response types
type GeminiGenerateContentRequest struct {
	Contents         []GeminiContent `json:"contents"`
	GenerationConfig *GeminiConfig   `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Role  string              `json:"role"`
	Parts []GeminiContentPart `json:"parts"`
}

type GeminiContentPart struct {
	Text string `json:"text,omitempty"`
}

type GeminiConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type GeminiGenerateContentResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// NewGeminiModel creates a new Gemini model using the Model struct
func NewGeminiModel(modelName string, apiKey string) *Model {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	return &Model{
		ModelName: modelName,
		APIKey:    apiKey,
		BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		callFunc: geminiGenerate,
	}
}

const maxRetries = 3

// geminiGenerate is the generate function for Gemini models with retry logic
func geminiGenerate(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		contents := geminiConvertMessages(messages)

		response, err := geminiREST(ctx, model, contents)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return AIMessage{}, fmt.Errorf("failed to generate (non-retryable): %w", err)
		}

		if attempt == maxRetries {
			break
		}

		delay := calculateBackoffDelay(attempt)

		slog.Warn("Gemini API request failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"delay", delay,
			"error", err.Error())

		select {
		case <-ctx.Done():
			return AIMessage{}, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return AIMessage{}, fmt.Errorf("failed to generate after %d attempts. Last error: %w", maxRetries+1, lastErr)
}

// geminiConvertMessages converts our message format to Gemini's format.
// System messages are folded into the first user turn because the
// generateContent API has no separate system role on this endpoint.
func geminiConvertMessages(messages []Message) []GeminiContent {
	contents := make([]GeminiContent, 0, len(messages))

	for _, msg := range messages {
		role, text := msg.Value()
		switch role {
		case SystemRole:
			continue
		case AssistantRole:
			// Gemini uses "model" for assistant turns
			contents = append(contents, GeminiContent{
				Role:  "model",
				Parts: []GeminiContentPart{{Text: text}},
			})
		default:
			contents = append(contents, GeminiContent{
				Role:  string(UserRole),
				Parts: []GeminiContentPart{{Text: text}},
			})
		}
	}

	for _, msg := range messages {
		if sys, ok := msg.(SystemMessage); ok {
			for j := range contents {
				if contents[j].Role == string(UserRole) {
					sysPart := GeminiContentPart{Text: sys.Content}
					contents[j].Parts = append([]GeminiContentPart{sysPart}, contents[j].Parts...)
					break
				}
			}
			break
		}
	}

	return contents
}

func geminiREST(ctx context.Context, model *Model, contents []GeminiContent) (AIMessage, error) {
	reqBody := GeminiGenerateContentRequest{Contents: contents}

	if model.Temperature != nil || model.TopP != nil || model.MaxTokens != nil || model.StopSequences != nil {
		cfg := &GeminiConfig{
			Temperature: model.Temperature,
			TopP:        model.TopP,
		}
		if model.MaxTokens != nil {
			cfg.MaxOutputTokens = *model.MaxTokens
		}
		if model.StopSequences != nil {
			cfg.StopSequences = *model.StopSequences
		}
		reqBody.GenerationConfig = cfg
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", model.BaseURL, model.ModelName, model.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := model.client.Do(req)
	if err != nil {
		return AIMessage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return AIMessage{}, StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(body),
		}
	}

	var genResp GeminiGenerateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return AIMessage{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return AIMessage{}, fmt.Errorf("no candidates in response")
	}

	var content string
	for _, part := range genResp.Candidates[0].Content.Parts {
		content += part.Text
	}

	return AIMessage{Role: AssistantRole, Content: content}, nil
}

// isRetryableError reports whether the error is transient (rate limit,
// gateway trouble) and worth another attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if statusErr, ok := err.(StatusError); ok {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return false
}

// calculateBackoffDelay returns an exponential backoff delay with jitter
func calculateBackoffDelay(attempt int) time.Duration {
	base := time.Second * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	return base + jitter
}
