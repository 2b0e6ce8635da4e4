package sqlflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexxia-ai/sqlflow/ai"
)

func testState() *State {
	return &State{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestFindDisallowed(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"clean question", "How many customers are there?", nil},
		{"lowercase keyword", "please drop the orders table", []string{"DROP"}},
		{"mixed case keyword", "Delete all rows", []string{"DELETE"}},
		{"keyword inside a word is not matched", "show the dropdown for updated_at", nil},
		{"multiple keywords in order of appearance", "DROP TABLE x; INSERT INTO y", []string{"DROP", "INSERT"}},
		{"repeated keyword reported once", "update then UPDATE again", []string{"UPDATE"}},
		{"exec variants", "exec sp_help; EXECUTE proc", []string{"EXEC", "EXECUTE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findDisallowed(tt.text))
		})
	}
}

func TestPreSafetyCheckBlocksDisallowedOperations(t *testing.T) {
	p := &Pipeline{Model: ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		t.Fatal("the semantic check must not run when the block-list fires")
		return ai.AIMessage{}, nil
	})}

	s := testState()
	s.TranslatedQuestion = "DROP TABLE Customers"
	p.preSafetyCheck(context.Background(), s)

	assert.True(t, s.Err)
	_, msg := s.LastMessage()
	assert.Equal(t, "Your query contains disallowed SQL operations and cannot be processed.", msg)
}

func TestPreSafetyCheckBlocksInappropriateContent(t *testing.T) {
	p := &Pipeline{Model: ai.NewScriptedModel("unsafe")}

	s := testState()
	s.TranslatedQuestion = "some toxic text"
	p.preSafetyCheck(context.Background(), s)

	assert.True(t, s.Err)
	_, msg := s.LastMessage()
	assert.Equal(t, "Your query contains inappropriate content and cannot be processed.", msg)
}

func TestPreSafetyCheckPassesSafeInput(t *testing.T) {
	p := &Pipeline{Model: ai.NewScriptedModel("safe")}

	s := testState()
	s.TranslatedQuestion = "How many customers are there?"
	p.preSafetyCheck(context.Background(), s)

	assert.False(t, s.Err)
	assert.Empty(t, s.Transcript)
}

func TestPostSafetyCheck(t *testing.T) {
	p := &Pipeline{}

	t.Run("clean SQL passes", func(t *testing.T) {
		s := testState()
		s.Candidate = &Candidate{Description: "count", SQLCode: "SELECT COUNT(*) FROM Customers"}
		p.postSafetyCheck(s)
		assert.False(t, s.Err)
	})

	t.Run("mutating SQL is reported with its keywords", func(t *testing.T) {
		s := testState()
		s.Candidate = &Candidate{Description: "bad", SQLCode: "DROP TABLE Customers; DELETE FROM Orders"}
		p.postSafetyCheck(s)
		assert.True(t, s.Err)
		_, msg := s.LastMessage()
		assert.Equal(t, "The generated SQL query contains disallowed SQL operations: DROP, DELETE and cannot be processed.", msg)
	})

	t.Run("missing candidate passes as empty", func(t *testing.T) {
		s := testState()
		p.postSafetyCheck(s)
		assert.False(t, s.Err)
	})
}
