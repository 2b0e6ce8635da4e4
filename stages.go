package sqlflow

import (
	"context"
	"fmt"
	"strings"
)

// translateInput rewrites the user's question into English so every later
// stage works on one language. An already-English question passes through
// unchanged. Translation failure falls back to the raw question rather than
// failing the run.
func (p *Pipeline) translateInput(ctx context.Context, s *State, question string) {
	resp, err := p.Model.Complete(ctx, fmt.Sprintf(translateInputPrompt, question))
	if err != nil || resp == "" {
		s.log.Warn("input translation failed, using original question", "error", err)
		s.TranslatedQuestion = question
		return
	}
	s.TranslatedQuestion = resp
	s.log.Debug("translated input", "question", s.TranslatedQuestion)
}

// schemaExtract renders the active database schema into the state. A schema
// read failure is terminal for the run.
func (p *Pipeline) schemaExtract(ctx context.Context, s *State, session SchemaSource) error {
	schema, err := session.SchemaText(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract schema: %w", err)
	}
	s.SchemaText = schema
	s.log.Debug("extracted schema", "schema", schema)
	return nil
}

// contextCheck asks the model whether the question can be answered from the
// schema. Anything other than an exact "relevant" verdict, including a model
// error, rejects the question. The check fails closed.
func (p *Pipeline) contextCheck(ctx context.Context, s *State) {
	s.Err = false

	resp, err := p.Model.Complete(ctx, fmt.Sprintf(contextCheckPrompt, s.TranslatedQuestion, s.SchemaText))
	if err != nil {
		s.log.Error("relevance check failed", "error", err)
		s.Err = true
		s.appendAssistant("Your question is not related to the database and cannot be processed.")
		return
	}

	if !strings.EqualFold(strings.TrimSpace(resp), "relevant") {
		s.log.Info("question judged irrelevant to the database")
		s.Err = true
		s.appendAssistant("Your question is not related to the database and cannot be processed.")
		return
	}

	s.log.Debug("question is relevant to the database")
}

// translateAnswer renders the final answer in the language of the original
// question. On failure the English answer is kept as-is.
func (p *Pipeline) translateAnswer(ctx context.Context, s *State, question string) {
	_, answer := s.LastMessage()
	if answer == "" {
		return
	}

	resp, err := p.Model.Complete(ctx, fmt.Sprintf(translateAnswerPrompt, question, answer))
	if err != nil || resp == "" {
		s.log.Warn("answer translation failed, keeping English answer", "error", err)
		s.Answer = answer
		return
	}
	s.Answer = resp
}
