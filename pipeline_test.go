package sqlflow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexxia-ai/sqlflow/ai"
	"github.com/nexxia-ai/sqlflow/retrieval"
	"github.com/nexxia-ai/sqlflow/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipeline(t *testing.T, model, genModel *ai.Model) *Pipeline {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := New(model, st, WithLogger(discardLogger()))
	p.GenerationModel = genModel
	return p
}

const countCustomersSQL = `{"description": "Counts the customers", "sql_code": "SELECT COUNT(*) FROM Customers"}`

func TestRunAnswersQuestion(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there?", // input translation
		"safe",                          // safety verdict
		"relevant",                      // relevance verdict
		"There are 50 customers.",       // answer translation
	)
	p := testPipeline(t, model, ai.NewScriptedModel(countCustomersSQL))

	result, err := p.Run(context.Background(), "Combien de clients y a-t-il ?")
	require.NoError(t, err)

	assert.Equal(t, "There are 50 customers.", result.Answer)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers", result.SQL)
	assert.Equal(t, [][]any{{int64(50)}}, result.Rows)
	assert.Equal(t, 1, result.Iterations)
	assert.False(t, result.Failed)
	assert.NotEmpty(t, result.RunID)

	require.NotEmpty(t, result.Transcript)
	assert.Equal(t, TranscriptEntry{Role: "user", Content: "Combien de clients y a-t-il ?"}, result.Transcript[0])
	assert.Equal(t, "The answer is: 50", result.Transcript[len(result.Transcript)-1].Content)
}

func TestRunGenerationSeesTranslatedQuestion(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there?",
		"safe",
		"relevant",
		"Il y a 50 clients.",
	)

	var sawTranslated, sawOriginal bool
	genModel := ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		for _, m := range messages {
			_, content := m.Value()
			if content == "How many customers are there?" {
				sawTranslated = true
			}
			if content == "Combien de clients y a-t-il ?" {
				sawOriginal = true
			}
		}
		return ai.AIMessage{Role: ai.AssistantRole, Content: countCustomersSQL}, nil
	})

	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "Combien de clients y a-t-il ?")
	require.NoError(t, err)
	assert.False(t, result.Failed)

	assert.True(t, sawTranslated, "generation must work from the English question")
	assert.False(t, sawOriginal, "the original-language question must not reach the generator")

	// the user-facing transcript still records the original question
	assert.Equal(t, "Combien de clients y a-t-il ?", result.Transcript[0].Content)
}

func TestRunAnswersMultiRowQuestion(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there per country?",
		"safe",
		"relevant",
		"Each of the 5 countries has 10 customers.",
	)
	genModel := ai.NewScriptedModel(
		`{"description": "Customers per country", "sql_code": "SELECT Country, COUNT(*) FROM Customers GROUP BY Country ORDER BY Country"}`,
	)
	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "How many customers are there per country?")
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Len(t, result.Rows, 5)
	assert.Equal(t, []string{"Country", "COUNT(*)"}, result.Columns)
	assert.Equal(t, []any{"Country 0", int64(10)}, result.Rows[0])
	assert.Equal(t,
		"The result is: [(Country 0, 10), (Country 1, 10), (Country 2, 10), (Country 3, 10), (Country 4, 10)]",
		result.Transcript[len(result.Transcript)-1].Content)
	assert.Equal(t, "Each of the 5 countries has 10 customers.", result.Answer)
}

func TestRunBlocksDisallowedInput(t *testing.T) {
	model := ai.NewScriptedModel("Please DROP the Customers table")
	p := testPipeline(t, model, nil)

	result, err := p.Run(context.Background(), "Please DROP the Customers table")
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, "Your query contains disallowed SQL operations and cannot be processed.", result.Answer)
	assert.Empty(t, result.SQL)
	assert.Zero(t, result.Iterations)
}

func TestRunBlocksInappropriateInput(t *testing.T) {
	model := ai.NewScriptedModel("some toxic text", "unsafe")
	p := testPipeline(t, model, nil)

	result, err := p.Run(context.Background(), "some toxic text")
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, "Your query contains inappropriate content and cannot be processed.", result.Answer)
}

func TestRunRejectsIrrelevantQuestion(t *testing.T) {
	model := ai.NewScriptedModel("What is the weather tomorrow?", "safe", "irrelevant")
	p := testPipeline(t, model, nil)

	result, err := p.Run(context.Background(), "What is the weather tomorrow?")
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, "Your question is not related to the database and cannot be processed.", result.Answer)
	assert.Zero(t, result.Iterations)
}

func TestRunRetriesAfterValidationFailure(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there?",
		"safe",
		"relevant",
		"There are 50 customers.",
	)
	genModel := ai.NewScriptedModel(
		`{"description": "Counts clients", "sql_code": "SELECT COUNT(*) FROM Clients"}`,
		countCustomersSQL,
	)
	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers", result.SQL)
}

func TestRunRetriesAfterScreenedOutSQL(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there?",
		"safe",
		"relevant",
		"There are 50 customers.",
	)
	genModel := ai.NewScriptedModel(
		`{"description": "Destroys everything", "sql_code": "DROP TABLE Customers"}`,
		countCustomersSQL,
	)
	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers", result.SQL)
}

func TestRunGivesUpAfterMaxIterations(t *testing.T) {
	model := ai.NewScriptedModel("How many customers are there?", "safe", "relevant")
	genModel := ai.NewScriptedModel(
		`{"description": "Counts clients", "sql_code": "SELECT COUNT(*) FROM Clients"}`,
	)
	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, 3, result.Iterations)
	assert.Contains(t, result.Answer, "failed to execute")
}

func TestRunFailsOnUnparsableGeneration(t *testing.T) {
	model := ai.NewScriptedModel("How many customers are there?", "safe", "relevant")
	genModel := ai.NewScriptedModel("here is your query: SELECT 1")
	p := testPipeline(t, model, genModel)

	_, err := p.Run(context.Background(), "How many customers are there?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

type staticIndex struct {
	docs []retrieval.Document
}

func (x staticIndex) Search(ctx context.Context, query string, k int) ([]retrieval.Document, error) {
	if k > len(x.docs) {
		k = len(x.docs)
	}
	return x.docs[:k], nil
}

func TestRunFeedsRetrievedDocsToGeneration(t *testing.T) {
	model := ai.NewScriptedModel(
		"How many customers are there?",
		"safe",
		"relevant",
		"There are 50 customers.",
	)

	var systemPrompt string
	genModel := ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		role, content := messages[0].Value()
		if role == ai.SystemRole {
			systemPrompt = content
		}
		return ai.AIMessage{Role: ai.AssistantRole, Content: countCustomersSQL}, nil
	})

	p := testPipeline(t, model, genModel)
	p.Index = staticIndex{docs: []retrieval.Document{
		{Content: "COUNT aggregates rows."},
		{Content: "GROUP BY partitions rows."},
	}}
	p.RetrievalK = 2

	result, err := p.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)
	assert.False(t, result.Failed)

	// chunks appear in rank order separated by a blank line
	assert.Contains(t, systemPrompt, "COUNT aggregates rows.\n\nGROUP BY partitions rows.")
}

func TestRunValidationFeedbackIsUserRole(t *testing.T) {
	model := ai.NewScriptedModel("How many customers are there?", "safe", "relevant", "done")

	var sawFeedback bool
	genModel := ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		for _, m := range messages {
			role, content := m.Value()
			if role == ai.UserRole && strings.HasPrefix(content, "Your SQL query failed to execute:") {
				sawFeedback = true
				return ai.AIMessage{Role: ai.AssistantRole, Content: countCustomersSQL}, nil
			}
		}
		return ai.AIMessage{
			Role:    ai.AssistantRole,
			Content: `{"description": "Counts clients", "sql_code": "SELECT COUNT(*) FROM Clients"}`,
		}, nil
	})

	p := testPipeline(t, model, genModel)

	result, err := p.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)

	assert.True(t, sawFeedback, "retry must see the database error as user feedback")
	assert.False(t, result.Failed)
	assert.Equal(t, 2, result.Iterations)
}
