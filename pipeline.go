// Package sqlflow turns natural-language questions in any language into
// validated SQL against a sqlite database and answers in the user's language.
// The pipeline is a fixed state machine: translate the question, screen it,
// check it against the schema, generate SQL with retrieval support, screen and
// validate the SQL with a bounded retry loop, execute it and translate the
// answer back.
package sqlflow

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexxia-ai/sqlflow/ai"
	"github.com/nexxia-ai/sqlflow/retrieval"
	"github.com/nexxia-ai/sqlflow/store"
)

// SchemaSource renders the schema of the active database.
type SchemaSource interface {
	SchemaText(ctx context.Context) (string, error)
}

// Validator trial-runs a statement without leaving visible changes.
type Validator interface {
	Validate(ctx context.Context, sqlQuery string) error
}

// Querier executes statements for real.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DBSession is what one pipeline run needs from the database. A run holds a
// single session throughout so validation savepoints and the final execution
// land on the same connection.
type DBSession interface {
	SchemaSource
	Validator
	Querier
	Close() error
}

// Pipeline wires the models, the retrieval index and the database together.
// It is safe for concurrent use; each Run builds its own state and session.
type Pipeline struct {
	// Model handles translation, safety and relevance classification
	Model *ai.Model

	// GenerationModel produces the SQL. Falls back to Model when nil.
	GenerationModel *ai.Model

	// Index supplies reference documentation chunks; nil disables retrieval
	Index retrieval.Index

	// Store is the active database
	Store *store.Store

	// MaxIterations bounds the generation retry loop
	MaxIterations int

	// RetrievalK is the number of reference chunks per generation
	RetrievalK int

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New builds a Pipeline with defaults applied.
func New(model *ai.Model, st *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		Model:         model,
		Store:         st,
		MaxIterations: 3,
		RetrievalK:    4,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TranscriptEntry is one message of a run's conversation log.
type TranscriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	// RunID identifies the run in logs
	RunID string `json:"run_id"`

	// Transcript is the full conversation log of the run
	Transcript []TranscriptEntry `json:"transcript"`

	// Answer is the final response in the user's language. Set on every
	// completed run, including refused and failed ones.
	Answer string `json:"answer"`

	// SQL is the last generated statement, empty when generation never ran
	SQL string `json:"sql,omitempty"`

	// Rows and Columns hold the result set of a SELECT
	Rows    [][]any  `json:"rows,omitempty"`
	Columns []string `json:"columns,omitempty"`

	// NoRowsFound reports a query that ran and matched nothing
	NoRowsFound bool `json:"no_rows_found,omitempty"`

	// Failed reports that the run ended on an error branch
	Failed bool `json:"failed,omitempty"`

	// Iterations is the number of generation attempts used
	Iterations int `json:"iterations"`
}

// Run answers one question. The state machine always terminates: every path
// either reaches the end stage or exhausts the iteration budget.
func (p *Pipeline) Run(ctx context.Context, question string) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	session, err := p.Store.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open database session: %w", err)
	}
	defer session.Close()

	return p.run(ctx, logger, session, runID, question)
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, session DBSession, runID, question string) (*Result, error) {
	logger.Info("pipeline run started", "question", question)

	s := &State{log: logger}
	s.appendUser(question)

	stage := StageTranslateInput
	for stage != StageEnd {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("entering stage", "stage", stage)

		switch stage {
		case StageTranslateInput:
			p.translateInput(ctx, s, question)

		case StagePreSafetyCheck:
			p.preSafetyCheck(ctx, s)

		case StageSchemaExtract:
			if err := p.schemaExtract(ctx, s, session); err != nil {
				return nil, err
			}

		case StageContextCheck:
			p.contextCheck(ctx, s)

		case StageGenerate:
			if err := p.generate(ctx, s); err != nil {
				return nil, err
			}

		case StagePostSafetyCheck:
			p.postSafetyCheck(s)

		case StageSQLCheck:
			p.sqlCheck(ctx, s, session)

		case StageRunQuery:
			p.runQuery(ctx, s, session)

		case StageTranslateAnswer:
			p.translateAnswer(ctx, s, question)
		}

		stage = nextStage(stage, s, p.MaxIterations)
	}

	if s.Answer == "" {
		// Refused and retry-exhausted runs end before answer translation;
		// the last transcript entry is the message meant for the user.
		_, s.Answer = s.LastMessage()
	}

	transcript := make([]TranscriptEntry, len(s.Transcript))
	for i, m := range s.Transcript {
		role, content := m.Value()
		transcript[i] = TranscriptEntry{Role: string(role), Content: content}
	}

	result := &Result{
		RunID:       runID,
		Transcript:  transcript,
		Answer:      s.Answer,
		Rows:        s.Rows,
		Columns:     s.Columns,
		NoRowsFound: s.NoRowsFound,
		Failed:      s.Err,
		Iterations:  s.Iterations,
	}
	if s.Candidate != nil {
		result.SQL = s.Candidate.SQLCode
	}

	logger.Info("pipeline run finished", "failed", result.Failed, "iterations", result.Iterations)
	return result, nil
}
