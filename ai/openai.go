package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const OpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI-specific request/response types (chat completions API)
type OpenAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []OpenAIChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type OpenAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

type OpenAIChatChoice struct {
	Index        int               `json:"index"`
	Message      OpenAIChatMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewOpenAIModel creates a new OpenAI chat model using the Model struct
func NewOpenAIModel(modelName string, apiKey string) *Model {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &Model{
		ModelName: modelName,
		APIKey:    apiKey,
		BaseURL:   OpenAIBaseURL,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		callFunc: openaiGenerate,
	}
}

func openaiGenerate(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
	chatMessages := make([]OpenAIChatMessage, 0, len(messages))
	for _, msg := range messages {
		role, content := msg.Value()
		chatMessages = append(chatMessages, OpenAIChatMessage{
			Role:    string(role),
			Content: content,
		})
	}

	reqBody := OpenAIChatRequest{
		Model:       model.ModelName,
		Messages:    chatMessages,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
		TopP:        model.TopP,
	}
	if model.StopSequences != nil {
		reqBody.Stop = *model.StopSequences
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, model.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+model.APIKey)

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
		var apiErr OpenAIErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return AIMessage{}, StatusError{
				StatusCode:   resp.StatusCode,
				Status:       resp.Status,
				ErrorMessage: apiErr.Error.Message,
			}
		}
		return AIMessage{}, StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(body),
		}
	}

	var chatResp OpenAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return AIMessage{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return AIMessage{}, fmt.Errorf("no choices in response")
	}

	return AIMessage{Role: AssistantRole, Content: chatResp.Choices[0].Message.Content}, nil
}
