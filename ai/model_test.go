package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelWithoutProviderFunc(t *testing.T) {
	m := &Model{ModelName: "orphan"}
	_, err := m.Call(context.Background(), []Message{UserMessage{Role: UserRole, Content: "hi"}})
	assert.Error(t, err)
}

func TestModelOptionChaining(t *testing.T) {
	m := (&Model{}).WithTemperature(0.2).WithMaxTokens(100).WithTopP(0.9)
	require.NotNil(t, m.Temperature)
	assert.Equal(t, 0.2, *m.Temperature)
	require.NotNil(t, m.MaxTokens)
	assert.Equal(t, 100, *m.MaxTokens)
	require.NotNil(t, m.TopP)
	assert.Equal(t, 0.9, *m.TopP)
}

func TestCompleteTrimsResponse(t *testing.T) {
	m := NewScriptedModel("  hello world \n")
	resp, err := m.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp)
}

func TestCompletePropagatesError(t *testing.T) {
	m := NewDummyModel(func(ctx context.Context, messages []Message) (AIMessage, error) {
		return AIMessage{}, errors.New("boom")
	})
	_, err := m.Complete(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestScriptedModelReplaysInOrder(t *testing.T) {
	m := NewScriptedModel("first", "second")

	for _, want := range []string{"first", "second", "second"} {
		resp, err := m.Complete(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, want, resp)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare JSON", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
		{"fence with trailing text stripped", "```json\n{\"a\": 1}\n``` done", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError{StatusCode: 429, Status: "429 Too Many Requests", ErrorMessage: "slow down"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}
