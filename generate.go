package sqlflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexxia-ai/sqlflow/ai"
)

// generate produces a fresh SQL candidate from the transcript, the schema and
// retrieved reference documentation. The transcript carries the feedback from
// any earlier failed attempt, so a retry sees what went wrong without any
// dedicated repair channel.
func (p *Pipeline) generate(ctx context.Context, s *State) error {
	s.Err = false
	s.Iterations++

	docs := ""
	if p.Index != nil {
		retrieved, err := p.Index.Search(ctx, s.TranslatedQuestion, p.RetrievalK)
		if err != nil {
			s.log.Warn("reference retrieval failed, generating without docs", "error", err)
		} else {
			parts := make([]string, 0, len(retrieved))
			for _, d := range retrieved {
				parts = append(parts, d.Content)
			}
			docs = strings.Join(parts, "\n\n")
		}
	}

	// The generator works on the English question; the original-language
	// question stays in the transcript for the user-facing record only.
	messages := make([]ai.Message, 0, len(s.Transcript)+1)
	messages = append(messages, ai.SystemMessage{
		Role:    ai.SystemRole,
		Content: fmt.Sprintf(generateSystemPrompt, docs, s.SchemaText),
	})
	questionSwapped := false
	for _, m := range s.Transcript {
		role, content := m.Value()
		if role == ai.UserRole && !questionSwapped {
			content = s.TranslatedQuestion
			questionSwapped = true
		}
		switch role {
		case ai.UserRole:
			messages = append(messages, ai.UserMessage{Role: role, Content: content})
		default:
			messages = append(messages, ai.AIMessage{Role: role, Content: content})
		}
	}

	model := p.GenerationModel
	if model == nil {
		model = p.Model
	}

	resp, err := model.Call(ctx, messages)
	if err != nil {
		return fmt.Errorf("SQL generation failed: %w", err)
	}

	var candidate Candidate
	if err := json.Unmarshal([]byte(ai.ExtractJSON(resp.Content)), &candidate); err != nil {
		return fmt.Errorf("failed to parse generated SQL response: %w", err)
	}
	if candidate.Description == "" || candidate.SQLCode == "" {
		return fmt.Errorf("generated SQL response is missing description or sql_code")
	}

	s.Candidate = &candidate
	s.appendAssistant(fmt.Sprintf("%s\nSQL Query:\n%s", candidate.Description, candidate.SQLCode))
	s.log.Info("generated SQL candidate", "attempt", s.Iterations, "sql", candidate.SQLCode)
	return nil
}

// sqlCheck validates the candidate against the live database inside a
// savepoint. A failed statement is reported back into the transcript as user
// feedback for the next generation attempt.
func (p *Pipeline) sqlCheck(ctx context.Context, s *State, session Validator) {
	s.Err = false

	if err := session.Validate(ctx, s.Candidate.SQLCode); err != nil {
		s.log.Warn("SQL validation failed", "attempt", s.Iterations, "error", err)
		s.Err = true
		s.appendUser(fmt.Sprintf("Your SQL query failed to execute: %v", err))
		return
	}

	s.log.Debug("SQL candidate validated")
}
