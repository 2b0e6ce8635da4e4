package ai

import (
	"context"
)

// NewDummyModel is useful for testing purposes. It allows you to mock the model's response.
func NewDummyModel(responseFunc func(ctx context.Context, messages []Message) (AIMessage, error)) *Model {
	return &Model{
		ModelName: "dummy",
		callFunc: func(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
			return responseFunc(ctx, messages)
		},
	}
}

// NewScriptedModel returns a dummy model that replays the given responses in
// order, one per call. Calls past the end of the script repeat the last entry.
func NewScriptedModel(responses ...string) *Model {
	i := 0
	return NewDummyModel(func(ctx context.Context, messages []Message) (AIMessage, error) {
		if len(responses) == 0 {
			return AIMessage{Role: AssistantRole}, nil
		}
		resp := responses[min(i, len(responses)-1)]
		i++
		return AIMessage{Role: AssistantRole, Content: resp}, nil
	})
}
